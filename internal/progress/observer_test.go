package progress

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xmlstream/internal/id/uuid"
	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// TestObserverEmitsLifecycle checks a successful parse yields start, chunk and done events.
func TestObserverEmitsLifecycle(t *testing.T) {
	t.Parallel()

	rec := &recordingEmitter{}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	obs := NewObserver(rec, fixedClock{t: now}, "doc.xml")

	const id = "0190a5f4-7d7e-7cc2-8a4b-0c8f5f0e1a11"
	err := saxstream.Parse(context.Background(), strings.NewReader("<a>1</a><b/>"), saxstream.Handlers{},
		saxstream.WithObserver(obs), saxstream.WithSessionID(id), saxstream.WithChunkSize(4))
	require.NoError(t, err)

	require.NotEmpty(t, rec.events)
	first, last := rec.events[0], rec.events[len(rec.events)-1]
	require.Equal(t, StageSessionStart, first.Stage)
	require.Equal(t, StageSessionDone, last.Stage)
	require.EqualValues(t, 12, last.Bytes)
	// open a, text, close a, open b, end
	require.EqualValues(t, 5, last.Events)
	for _, evt := range rec.events {
		require.Equal(t, uuid.Bytes(id), evt.SessionID)
		require.Equal(t, now, evt.TS)
		require.Equal(t, "doc.xml", evt.Source)
		require.NoError(t, evt.Validate())
	}
	chunks := 0
	for _, evt := range rec.events {
		if evt.Stage == StageChunk {
			chunks++
		}
	}
	require.Equal(t, 3, chunks)
}

// TestObserverEmitsError checks failures carry the classified error.
func TestObserverEmitsError(t *testing.T) {
	t.Parallel()

	rec := &recordingEmitter{}
	obs := NewObserver(rec, nil, "broken.xml")
	boom := errors.New("boom")
	err := saxstream.Parse(context.Background(), strings.NewReader("<a>1</a>"), saxstream.Handlers{
		Text: func(context.Context, saxstream.Text) error { return boom },
	}, saxstream.WithObserver(obs))
	require.ErrorIs(t, err, boom)

	last := rec.events[len(rec.events)-1]
	require.Equal(t, StageSessionError, last.Stage)
	require.Equal(t, ErrorHandler, last.ErrorClass)
	require.Contains(t, last.Note, "boom")
}

// TestObserverNilEmitter ensures a nil emitter is tolerated.
func TestObserverNilEmitter(t *testing.T) {
	t.Parallel()

	obs := NewObserver(nil, nil, "x")
	require.NotPanics(t, func() {
		obs.SessionStarted("id")
		obs.SessionFinished("id", saxstream.Stats{}, nil)
	})
}
