package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	logger.Info("production logger ready")
}

func TestForSession(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ForSession(zap.New(core), "0192-abc", "gs://bucket/doc.xml").Info("hello")
	ForSession(zap.New(core), "", "").Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "0192-abc", ctx["session_id"])
	assert.Equal(t, "gs://bucket/doc.xml", ctx["source"])
	assert.Empty(t, entries[1].ContextMap())

	assert.NotPanics(t, func() { ForSession(nil, "id", "src").Info("dropped") })
}
