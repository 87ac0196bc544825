package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/xmlstream/internal/progress"
)

// TestLogSinkLevels checks lifecycle, chunk and error events map onto log levels.
func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	id := [16]byte(uuid.New())
	now := time.Now()

	batch := []progress.Event{
		{SessionID: id, TS: now, Stage: progress.StageSessionStart, Source: "a.xml"},
		{SessionID: id, TS: now, Stage: progress.StageChunk, Source: "a.xml", Bytes: 10, Events: 2},
		{
			SessionID:  id,
			TS:         now,
			Stage:      progress.StageSessionError,
			Source:     "a.xml",
			ErrorClass: progress.ErrorSyntax,
			Note:       "xml syntax error",
			Dur:        time.Millisecond,
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.DebugLevel, entries[1].Level)
	require.Equal(t, zapcore.WarnLevel, entries[2].Level)

	fields := entries[2].ContextMap()
	require.Equal(t, "syntax", fields["error_class"])
	require.Equal(t, "xml syntax error", fields["note"])
	require.Equal(t, uuid.UUID(id).String(), fields["session_id"])
}

// TestLogSinkRespectsLevel ensures debug chunk events are skipped at info level.
func TestLogSinkRespectsLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))
	id := [16]byte(uuid.New())
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{SessionID: id, TS: time.Now(), Stage: progress.StageChunk, Bytes: 1},
	}))
	require.Zero(t, logs.Len())
}

// TestNewLogSinkNilLogger confirms a nil logger falls back to a no-op logger.
func TestNewLogSinkNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{Stage: progress.StageSessionStart}}))
}
