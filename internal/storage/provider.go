// Package storage defines the blob storage abstraction used to read source
// documents and write transformed output or session reports.
// Backends live in the gcs, local and memory subpackages.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// Provider reads and writes objects addressed by a slash-separated path.
type Provider interface {
	// Open returns a reader for the object at path. Missing objects wrap fs.ErrNotExist.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// PutObject stores the content of r at path and returns the object URI.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Supported location schemes.
const (
	SchemeFile   = "file"
	SchemeGCS    = "gs"
	SchemeMemory = "memory"
)

// ErrUnsupportedScheme is returned for URIs whose scheme has no backend.
var ErrUnsupportedScheme = errors.New("unsupported storage scheme")

// Location is a parsed storage URI.
//   - file: Root is the parent directory and Key the base name.
//   - gs: Root is the bucket and Key the object name (possibly empty).
//   - memory: Root is empty and Key the object name.
type Location struct {
	Scheme string
	Root   string
	Key    string
}

// String renders the location back into URI form.
func (l Location) String() string {
	switch l.Scheme {
	case SchemeGCS:
		return fmt.Sprintf("gs://%s/%s", l.Root, l.Key)
	case SchemeMemory:
		return "memory://" + l.Key
	default:
		return "file://" + filepath.Join(l.Root, filepath.FromSlash(l.Key))
	}
}

// Join returns a location whose key is elem appended to l.Key.
func (l Location) Join(elem ...string) Location {
	l.Key = path.Join(append([]string{l.Key}, elem...)...)
	return l
}

// ParseLocation splits uri into a Location. Accepted forms are
// gs://bucket/object, memory://object, file:///abs/path and plain
// filesystem paths.
func ParseLocation(uri string) (Location, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Location{}, errors.New("storage uri is required")
	}
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return fileLocation(uri)
	}
	switch strings.ToLower(scheme) {
	case SchemeFile:
		return fileLocation(rest)
	case SchemeGCS:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, fmt.Errorf("gs uri %q has no bucket", uri)
		}
		return Location{Scheme: SchemeGCS, Root: bucket, Key: strings.Trim(key, "/")}, nil
	case SchemeMemory:
		key := strings.Trim(rest, "/")
		if key == "" {
			return Location{}, fmt.Errorf("memory uri %q has no key", uri)
		}
		return Location{Scheme: SchemeMemory, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

func fileLocation(p string) (Location, error) {
	if strings.TrimSpace(p) == "" {
		return Location{}, errors.New("file path is required")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return Location{}, fmt.Errorf("resolve path %q: %w", p, err)
	}
	return Location{
		Scheme: SchemeFile,
		Root:   filepath.Dir(abs),
		Key:    filepath.ToSlash(filepath.Base(abs)),
	}, nil
}
