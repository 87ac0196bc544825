package saxstream

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the input encoding used when no WithEncoding option is given.
const DefaultEncoding = "utf-8"

// Option configures a Parse call.
type Option func(*options)

type options struct {
	chunkSize int
	encoding  string
	logger    *zap.Logger
	observer  Observer
	sessionID string
	tokenizer TokenizerFactory
}

// WithChunkSize sets the read size. Chunking never changes the delivered
// events, only how many are produced per batch.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithEncoding names the input character encoding using WHATWG labels
// ("utf-8", "windows-1252", "shift_jis", ...). Input is decoded to UTF-8
// before tokenizing.
func WithEncoding(label string) Option {
	return func(o *options) {
		o.encoding = label
	}
}

// WithLogger sets the logger used for debug-level session tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver registers an Observer for session statistics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// WithTokenizer replaces the default tokenizer.
func WithTokenizer(factory TokenizerFactory) Option {
	return func(o *options) {
		o.tokenizer = factory
	}
}

func newOptions(opts []Option) (options, error) {
	o := options{
		chunkSize: DefaultChunkSize,
		encoding:  DefaultEncoding,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.chunkSize <= 0 {
		return options{}, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, o.chunkSize)
	}
	if strings.TrimSpace(o.encoding) == "" {
		o.encoding = DefaultEncoding
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.tokenizer == nil {
		o.tokenizer = NewTokenizer
	}
	return o, nil
}

// decoder wraps r so that it yields UTF-8.
func (o options) decoder(r io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(o.encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, o.encoding)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
