// Package telemetry wires OpenTelemetry tracing around parse sessions.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/JakeFAU/xmlstream"

// Span and attribute names.
const (
	SpanSession     = "xmlstream.session"
	EventChunk      = "chunk"
	AttrSource      = "xmlstream.source"
	AttrSessionID   = "xmlstream.session_id"
	AttrBytes       = "xmlstream.bytes"
	AttrEvents      = "xmlstream.events"
	AttrChunks      = "xmlstream.chunks"
	AttrDurationSec = "xmlstream.duration_seconds"
)

// tracer starts on the global provider; InitTracerProvider rebinds it to the
// provider it installs.
var tracer = otel.Tracer(instrumentationName)

// InitTracerProvider installs a global tracer provider. A nil exporter leaves
// spans unexported, which still lets them propagate through contexts.
func InitTracerProvider(ctx context.Context, serviceName string, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(instrumentationName)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

// StartSessionSpan starts the span covering one parse session.
func StartSessionSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanSession,
		trace.WithAttributes(attribute.String(AttrSource, source)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// AddChunkEvent records one tokenized chunk on span.
func AddChunkEvent(span trace.Span, bytes, events int) {
	if span == nil {
		return
	}
	span.AddEvent(EventChunk, trace.WithAttributes(
		attribute.Int(AttrBytes, bytes),
		attribute.Int(AttrEvents, events),
	))
}

// EndSpan completes span, recording err when non-nil.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
