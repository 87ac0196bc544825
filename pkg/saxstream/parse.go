package saxstream

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/id/uuid"
)

// Parse runs one parse session over r and delivers events to h in document
// order. It returns nil once the End handler has completed, or the first
// error encountered: *SourceReadError, *SyntaxError or *HandlerError.
//
// Parse has no timeout of its own. ctx is checked before every read, but a
// handler that never returns blocks Parse forever; callers that need a bound
// must enforce it themselves and accept that in-flight handler state is
// abandoned.
func Parse(ctx context.Context, r io.Reader, h Handlers, opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	src, err := o.decoder(r)
	if err != nil {
		return err
	}
	s, err := newSession(o)
	if err != nil {
		return err
	}
	return s.run(ctx, src, h)
}

// Opener opens a named document for reading. Storage backends satisfy it.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ParseSource opens path through src, parses it with Parse and closes it.
// Failures to open or close are reported as *SourceReadError.
func ParseSource(ctx context.Context, src Opener, path string, h Handlers, opts ...Option) (err error) {
	rc, err := src.Open(ctx, path)
	if err != nil {
		return &SourceReadError{Err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = &SourceReadError{Err: fmt.Errorf("close %s: %w", path, cerr)}
		}
	}()
	return Parse(ctx, rc, h, opts...)
}

// ParseFile parses the file at path.
func ParseFile(ctx context.Context, path string, h Handlers, opts ...Option) error {
	return ParseSource(ctx, fileOpener{}, path, h, opts...)
}

type fileOpener struct{}

func (fileOpener) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path) // #nosec G304 -- caller chooses the document.
}

// session owns the tokenizer and statistics of one Parse call.
type session struct {
	id     string
	opts   options
	logger *zap.Logger
	stats  Stats
}

func newSession(o options) (*session, error) {
	id := o.sessionID
	if id == "" {
		generated, err := uuid.New().NewID()
		if err != nil {
			return nil, fmt.Errorf("session id: %w", err)
		}
		id = generated
	}
	return &session{
		id:     id,
		opts:   o,
		logger: o.logger.With(zap.String("session_id", id)),
		stats:  Stats{Events: make(map[Kind]int, 4)},
	}, nil
}

func (s *session) run(ctx context.Context, r io.Reader, h Handlers) (err error) {
	start := time.Now()
	s.opts.observer.SessionStarted(s.id)
	s.logger.Debug("parse session started",
		zap.Int("chunk_size", s.opts.chunkSize),
		zap.String("encoding", s.opts.encoding),
	)
	defer func() {
		s.stats.Duration = time.Since(start)
		s.opts.observer.SessionFinished(s.id, s.stats, err)
		s.logger.Debug("parse session finished",
			zap.Int("chunks", s.stats.Chunks),
			zap.Int64("bytes", s.stats.Bytes),
			zap.Int("events", s.stats.TotalEvents()),
			zap.Duration("dur", s.stats.Duration),
			zap.Bool("ok", err == nil),
		)
	}()

	g := newGenerator(ctx, r, s.opts.tokenizer, s.opts.chunkSize)
	g.onBatch = s.batchProduced
	return Dispatch(ctx, g.seq, h)
}

func (s *session) batchProduced(n int, batch []Event) {
	for _, ev := range batch {
		s.stats.Events[ev.Kind()]++
	}
	if n == 0 {
		return
	}
	s.stats.Chunks++
	s.stats.Bytes += int64(n)
	s.opts.observer.ChunkProcessed(s.id, n, len(batch))
	s.logger.Debug("chunk tokenized", zap.Int("bytes", n), zap.Int("events", len(batch)))
}
