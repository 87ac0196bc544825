package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcs "cloud.google.com/go/storage"

	gcsstore "github.com/JakeFAU/xmlstream/internal/storage/gcs"
	"github.com/JakeFAU/xmlstream/internal/storage/local"
	"github.com/JakeFAU/xmlstream/internal/storage/memory"
)

// ClientFactory creates a GCS client on first use.
type ClientFactory func(ctx context.Context) (*gcs.Client, error)

// DefaultClientFactory uses application default credentials.
func DefaultClientFactory(ctx context.Context) (*gcs.Client, error) {
	return gcs.NewClient(ctx)
}

// Resolver maps Locations onto backend Providers. The GCS client is created
// lazily and shared by every gs:// location; memory:// locations share one
// in-process store.
type Resolver struct {
	newClient ClientFactory
	memory    *memory.BlobStore

	mu        sync.Mutex
	client    *gcs.Client
	ownClient bool
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithClientFactory overrides how the GCS client is built.
func WithClientFactory(f ClientFactory) ResolverOption {
	return func(r *Resolver) {
		r.newClient = f
	}
}

// WithGCSClient supplies a ready client. The Resolver does not close it.
func WithGCSClient(c *gcs.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithMemoryStore shares an existing in-memory store.
func WithMemoryStore(m *memory.BlobStore) ResolverOption {
	return func(r *Resolver) {
		r.memory = m
	}
}

// NewResolver builds a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{newClient: DefaultClientFactory}
	for _, opt := range opts {
		opt(r)
	}
	if r.memory == nil {
		r.memory = memory.NewBlobStore()
	}
	return r
}

// Resolve parses uri and returns the Provider serving it along with the
// object key to pass to that Provider.
func (r *Resolver) Resolve(ctx context.Context, uri string) (Provider, string, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, "", err
	}
	p, err := r.Provider(ctx, loc)
	if err != nil {
		return nil, "", err
	}
	return p, loc.Key, nil
}

// Provider returns the backend for loc.
func (r *Resolver) Provider(ctx context.Context, loc Location) (Provider, error) {
	switch loc.Scheme {
	case SchemeFile:
		store, err := local.New(local.Config{BaseDir: loc.Root})
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		return store, nil
	case SchemeMemory:
		return r.memory, nil
	case SchemeGCS:
		client, err := r.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: loc.Root})
		if err != nil {
			return nil, fmt.Errorf("gcs storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, loc.Scheme)
	}
}

// Memory exposes the shared in-memory store.
func (r *Resolver) Memory() *memory.BlobStore {
	return r.memory
}

func (r *Resolver) gcsClient(ctx context.Context) (*gcs.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	if r.newClient == nil {
		return nil, errors.New("no gcs client factory configured")
	}
	client, err := r.newClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	r.client = client
	r.ownClient = true
	return client, nil
}

// Close releases the GCS client if the Resolver created it.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil || !r.ownClient {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	r.ownClient = false
	if err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
