package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xmlstream/internal/store"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	id := uuid.New()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.StartSession(ctx, id, "doc.xml", started))
	require.NoError(t, s.StartSession(ctx, id, "doc.xml", started), "start is idempotent")

	run, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)
	assert.True(t, started.Equal(run.StartedAt))

	finished := started.Add(1500 * time.Millisecond)
	msg := "unclosed tag"
	require.NoError(t, s.CompleteSession(ctx, store.SessionRun{
		ID:           id,
		Source:       "doc.xml",
		StartedAt:    started,
		FinishedAt:   &finished,
		Status:       store.StatusError,
		Chunks:       2,
		Bytes:        128,
		Events:       6,
		ErrorClass:   "syntax",
		ErrorMessage: &msg,
	}))

	run, err = s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, run.Status)
	require.NotNil(t, run.FinishedAt)
	assert.True(t, finished.Equal(*run.FinishedAt))
	assert.Equal(t, int64(128), run.Bytes)
	assert.Equal(t, "syntax", run.ErrorClass)
	require.NotNil(t, run.ErrorMessage)
	assert.Equal(t, msg, *run.ErrorMessage)
}

func TestCompleteWithoutStart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	id := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, s.CompleteSession(ctx, store.SessionRun{
		ID: id, Source: "late.xml", StartedAt: now, FinishedAt: &now, Status: store.StatusSuccess,
	}))
	run, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "late.xml", run.Source)
	assert.Equal(t, store.StatusSuccess, run.Status)
}

func TestListSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		require.NoError(t, s.StartSession(ctx, id, "doc.xml", base.Add(time.Duration(i)*time.Minute)))
	}
	done := base.Add(time.Hour)
	require.NoError(t, s.CompleteSession(ctx, store.SessionRun{
		ID: ids[0], Source: "doc.xml", StartedAt: base, FinishedAt: &done, Status: store.StatusSuccess,
	}))

	all, err := s.ListSessions(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	running := store.StatusRunning
	filtered, err := s.ListSessions(ctx, &running, 10, 0)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	page, err := s.ListSessions(ctx, nil, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestNotFoundAndClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetSession(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.StartSession(ctx, uuid.New(), "x", time.Now()), ErrStoreClosed)
	_, err = s.ListSessions(ctx, nil, 1, 0)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "")
	assert.Error(t, err)
}
