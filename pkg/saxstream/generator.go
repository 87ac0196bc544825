package saxstream

import (
	"context"
	"errors"
	"io"
	"iter"
)

// DefaultChunkSize is the read size used when no WithChunkSize option is given.
const DefaultChunkSize = 64 * 1024

// Batches returns a lazy sequence of event batches read from r. Each item
// holds every event the tokenizer completed while consuming one chunk, and
// may be empty. After r reports io.EOF the tokenizer is finalized and a last
// batch containing only End is yielded.
//
// The sequence is single-use. Iteration stops at the first error, which is a
// *SourceReadError or a *SyntaxError. Breaking out of the range stops reading.
// A nil factory selects NewTokenizer; a non-positive chunkSize selects
// DefaultChunkSize.
func Batches(ctx context.Context, r io.Reader, factory TokenizerFactory, chunkSize int) iter.Seq2[[]Event, error] {
	return newGenerator(ctx, r, factory, chunkSize).seq
}

type generator struct {
	ctx     context.Context
	r       io.Reader
	adapter *tokenizerAdapter
	buf     []byte
	offset  int64
	started bool

	// onBatch observes every batch before it is yielded; bytes is 0 for
	// batches produced by finalization.
	onBatch func(bytes int, batch []Event)
}

func newGenerator(ctx context.Context, r io.Reader, factory TokenizerFactory, chunkSize int) *generator {
	if factory == nil {
		factory = NewTokenizer
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &generator{
		ctx:     ctx,
		r:       r,
		adapter: newTokenizerAdapter(factory),
		buf:     make([]byte, chunkSize),
	}
}

func (g *generator) seq(yield func([]Event, error) bool) {
	if g.started {
		yield(nil, ErrBatchesConsumed)
		return
	}
	g.started = true

	for {
		if err := g.ctx.Err(); err != nil {
			yield(nil, &SourceReadError{Offset: g.offset, Err: err})
			return
		}
		n, rerr := g.r.Read(g.buf)
		if n > 0 {
			g.offset += int64(n)
			batch, err := g.adapter.feed(g.buf[:n])
			if err != nil {
				yield(nil, err)
				return
			}
			if !g.emit(n, batch, yield) {
				return
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			yield(nil, &SourceReadError{Offset: g.offset, Err: rerr})
			return
		}
	}

	flushed, err := g.adapter.finalize()
	if err != nil {
		yield(nil, err)
		return
	}
	if len(flushed) > 0 && !g.emit(0, flushed, yield) {
		return
	}
	g.emit(0, []Event{End{}}, yield)
}

func (g *generator) emit(n int, batch []Event, yield func([]Event, error) bool) bool {
	if g.onBatch != nil {
		g.onBatch(n, batch)
	}
	return yield(batch, nil)
}
