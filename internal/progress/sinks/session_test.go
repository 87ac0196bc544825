package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xmlstream/internal/progress"
	"github.com/JakeFAU/xmlstream/internal/store"
)

type recordingRepo struct {
	started   []uuid.UUID
	completed []store.SessionRun
	startErr  error
}

func (r *recordingRepo) StartSession(_ context.Context, id uuid.UUID, _ string, _ time.Time) error {
	r.started = append(r.started, id)
	return r.startErr
}

func (r *recordingRepo) CompleteSession(_ context.Context, run store.SessionRun) error {
	r.completed = append(r.completed, run)
	return nil
}

func (r *recordingRepo) GetSession(context.Context, uuid.UUID) (store.SessionRun, error) {
	return store.SessionRun{}, store.ErrNotFound
}

func (r *recordingRepo) ListSessions(context.Context, *store.SessionStatus, int, int) ([]store.SessionRun, error) {
	return nil, nil
}

func (r *recordingRepo) Close() error { return nil }

func TestSessionSinkPersistsLifecycle(t *testing.T) {
	t.Parallel()

	repo := &recordingRepo{}
	sink, err := NewSessionSink(repo)
	require.NoError(t, err)

	ok := uuid.New()
	bad := uuid.New()
	start := time.Now().UTC()
	batch := append(sessionBatch([16]byte(ok), start, false), sessionBatch([16]byte(bad), start, true)...)
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	assert.Equal(t, []uuid.UUID{ok, bad}, repo.started)
	require.Len(t, repo.completed, 2)

	good := repo.completed[0]
	assert.Equal(t, store.StatusSuccess, good.Status)
	assert.Equal(t, int64(2), good.Chunks)
	assert.Nil(t, good.ErrorMessage)
	require.NotNil(t, good.FinishedAt)

	failed := repo.completed[1]
	assert.Equal(t, store.StatusError, failed.Status)
	assert.Equal(t, "syntax", failed.ErrorClass)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "unclosed tag <root>", *failed.ErrorMessage)
}

func TestSessionSinkReportsRepoErrors(t *testing.T) {
	t.Parallel()

	repo := &recordingRepo{startErr: errors.New("db down")}
	sink, err := NewSessionSink(repo)
	require.NoError(t, err)

	err = sink.Consume(context.Background(), sessionBatch([16]byte(uuid.New()), time.Now(), false))
	assert.ErrorContains(t, err, "db down")
	assert.Len(t, repo.completed, 1, "completion is still attempted")

	_, err = NewSessionSink(nil)
	assert.Error(t, err)
}
