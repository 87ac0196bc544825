package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingSink keeps every batch it receives.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
	err     error
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return s.err
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) snapshot() ([][]Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	copy(out, s.batches)
	return out, s.closed
}

func (s *recordingSink) flat() []Event {
	batches, _ := s.snapshot()
	var out []Event
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

// session builds the progress events one parse of n chunks would emit.
func session(n int) []Event {
	id := [16]byte(uuid.New())
	now := time.Now()
	evts := []Event{{SessionID: id, TS: now, Stage: StageSessionStart, Source: "feed.xml"}}
	for i := range n {
		evts = append(evts, Event{
			SessionID: id, TS: now, Stage: StageChunk, Source: "feed.xml",
			Bytes: int64(64 * (i + 1)), Events: int64(i),
		})
	}
	return append(evts, Event{
		SessionID: id, TS: now, Stage: StageSessionDone, Source: "feed.xml",
		Bytes: int64(64 * n), Dur: time.Millisecond,
	})
}

func TestHubBatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		chunks    int
		wantFirst int
	}{
		{
			name:      "flushes at batch size",
			cfg:       Config{BufferSize: 16, MaxBatchEvents: 3, MaxBatchWait: time.Minute},
			chunks:    1,
			wantFirst: 3,
		},
		{
			name:      "flushes small batch on timer",
			cfg:       Config{BufferSize: 16, MaxBatchEvents: 100, MaxBatchWait: 20 * time.Millisecond},
			chunks:    0,
			wantFirst: 2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sink := &recordingSink{}
			hub := NewHub(tc.cfg, sink)
			t.Cleanup(func() {
				require.NoError(t, hub.Close(context.Background()))
			})

			for _, evt := range session(tc.chunks) {
				hub.Emit(evt)
			}
			require.Eventually(t, func() bool {
				batches, _ := sink.snapshot()
				return len(batches) >= 1 && len(batches[0]) == tc.wantFirst
			}, time.Second, 5*time.Millisecond)
		})
	}
}

func TestHubPreservesSessionOrderAcrossBatches(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 64, MaxBatchEvents: 4, MaxBatchWait: time.Minute}, sink)

	want := session(10)
	for _, evt := range want {
		hub.Emit(evt)
	}
	require.NoError(t, hub.Close(context.Background()))

	batches, closed := sink.snapshot()
	assert.True(t, closed)
	assert.Len(t, batches, 3)
	assert.Equal(t, want, sink.flat())
}

func TestHubSinkFailureDoesNotStarveOthers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	failing := &recordingSink{err: errors.New("disk full")}
	healthy := &recordingSink{}
	hub := NewHub(Config{MaxBatchEvents: 2, MaxBatchWait: time.Minute, Logger: zap.New(core)}, failing, nil, healthy)

	evts := session(2)
	for _, evt := range evts {
		hub.Emit(evt)
	}
	require.NoError(t, hub.Close(context.Background()))

	assert.Equal(t, evts, healthy.flat())
	assert.Equal(t, evts, failing.flat())
	assert.Equal(t, 2, logs.FilterMessage("progress sink consume failed").Len())
}

func TestHubEmitDropsWhenFull(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	hub := &Hub{
		cfg:    Config{Logger: zap.New(core)},
		events: make(chan Event),
	}
	start := time.Now()
	for _, evt := range session(3) {
		hub.Emit(evt)
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 5, hub.Dropped())
	assert.Equal(t, 1, logs.Len(), "drop warnings are rate limited")
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{MaxBatchWait: time.Minute}, sink)
	hub.Emit(Event{Stage: StageSessionStart})
	hub.Emit(Event{SessionID: [16]byte(uuid.New()), Stage: "BOGUS"})
	require.NoError(t, hub.Close(context.Background()))

	batches, closed := sink.snapshot()
	assert.Empty(t, batches)
	assert.True(t, closed)
	assert.Zero(t, hub.Dropped())
}

func TestHubCloseDrainsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)

	evts := session(1)
	for _, evt := range evts {
		hub.Emit(evt)
	}
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(session(0)[0])
	batches, _ := sink.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, evts, batches[0])
}

// blockingSink holds Consume until released.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Consume(context.Context, []Event) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

func TestHubCloseHonoursContext(t *testing.T) {
	t.Parallel()

	sink := &blockingSink{release: make(chan struct{})}
	hub := NewHub(Config{MaxBatchEvents: 1, MaxBatchWait: time.Minute}, sink)
	hub.Emit(session(0)[0])

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := hub.Close(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(sink.release)
	require.NoError(t, hub.Close(context.Background()))
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(session(0)[0])
	assert.Zero(t, hub.Dropped())
	assert.NoError(t, hub.Close(context.Background()))
}
