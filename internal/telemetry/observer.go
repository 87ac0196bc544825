package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// SessionObserver mirrors saxstream session callbacks onto a span.
type SessionObserver struct {
	span trace.Span
}

var _ saxstream.Observer = (*SessionObserver)(nil)

// StartSession starts a session span and returns the observer that ends it.
// Pass the returned context to Parse so handler spans nest under the session.
func StartSession(ctx context.Context, source string) (context.Context, *SessionObserver) {
	ctx, span := StartSessionSpan(ctx, source)
	return ctx, &SessionObserver{span: span}
}

// SessionStarted tags the span with the session id.
func (o *SessionObserver) SessionStarted(id string) {
	o.span.SetAttributes(attribute.String(AttrSessionID, id))
}

// ChunkProcessed adds a chunk event.
func (o *SessionObserver) ChunkProcessed(_ string, bytes, events int) {
	AddChunkEvent(o.span, bytes, events)
}

// SessionFinished records totals and ends the span.
func (o *SessionObserver) SessionFinished(_ string, stats saxstream.Stats, err error) {
	o.span.SetAttributes(
		attribute.Int(AttrChunks, stats.Chunks),
		attribute.Int64(AttrBytes, stats.Bytes),
		attribute.Int(AttrEvents, stats.TotalEvents()),
		attribute.Float64(AttrDurationSec, stats.Duration.Seconds()),
	)
	EndSpan(o.span, err)
}

// End closes the span when the session never started, e.g. because the
// source could not be opened. It is a no-op after SessionFinished.
func (o *SessionObserver) End(err error) {
	if o.span.IsRecording() {
		EndSpan(o.span, err)
	}
}
