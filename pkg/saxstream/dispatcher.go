package saxstream

import (
	"context"
	"fmt"
	"iter"
)

// Handlers is the per-parse handler registration. Nil fields are skipped.
//
// Each handler runs to completion before the next event is delivered, so a
// handler that starts background work must wait for it before returning if
// that work has to be ordered with later events. Returning an error stops
// dispatch immediately.
type Handlers struct {
	OpenTag  func(ctx context.Context, ev OpenTag) error
	Text     func(ctx context.Context, ev Text) error
	CloseTag func(ctx context.Context, ev CloseTag) error
	End      func(ctx context.Context) error
}

func (h Handlers) handle(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case OpenTag:
		if h.OpenTag != nil {
			return h.OpenTag(ctx, ev)
		}
	case Text:
		if h.Text != nil {
			return h.Text(ctx, ev)
		}
	case CloseTag:
		if h.CloseTag != nil {
			return h.CloseTag(ctx, ev)
		}
	case End:
		if h.End != nil {
			return h.End(ctx)
		}
	default:
		return fmt.Errorf("saxstream: unexpected event type %T", ev)
	}
	return nil
}

// Dispatch drains batches in order, invoking the matching handler for each
// event one at a time. It returns nil after the End handler returns, the
// generator's error if the sequence fails, a *HandlerError if a handler
// fails, or ErrNoEnd if the sequence finishes without End.
func Dispatch(ctx context.Context, batches iter.Seq2[[]Event, error], h Handlers) error {
	for batch, err := range batches {
		if err != nil {
			return err
		}
		for _, ev := range batch {
			if ev == nil {
				continue
			}
			if err := h.handle(ctx, ev); err != nil {
				return &HandlerError{Kind: ev.Kind(), Event: ev, Err: err}
			}
			if ev.Kind() == KindEnd {
				return nil
			}
		}
	}
	return ErrNoEnd
}
