package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("session record not found")

// SessionStatus mirrors the parse_sessions status column.
type SessionStatus string

// Session statuses persisted in parse_sessions.status.
const (
	StatusRunning SessionStatus = "running"
	StatusSuccess SessionStatus = "success"
	StatusError   SessionStatus = "error"
)

// SessionRun models one row of parse_sessions.
type SessionRun struct {
	// ID is the parse session identifier.
	ID uuid.UUID
	// Source names the parsed document.
	Source string
	// StartedAt captures when the session began.
	StartedAt time.Time
	// FinishedAt is nil while the session is running.
	FinishedAt *time.Time
	Status     SessionStatus
	// Chunks, Bytes and Events are the totals reported at completion.
	Chunks int64
	Bytes  int64
	Events int64
	// ErrorClass and ErrorMessage are set when Status is error.
	ErrorClass   string
	ErrorMessage *string
}

// SessionRepository persists parse-session history.
type SessionRepository interface {
	// StartSession inserts a running row; repeated calls are idempotent.
	StartSession(ctx context.Context, id uuid.UUID, source string, startedAt time.Time) error
	// CompleteSession records the final status and totals, inserting the row if
	// the start was never persisted.
	CompleteSession(ctx context.Context, run SessionRun) error
	// GetSession loads a single session or returns ErrNotFound.
	GetSession(ctx context.Context, id uuid.UUID) (SessionRun, error)
	// ListSessions returns sessions newest first, optionally filtered by status.
	ListSessions(ctx context.Context, status *SessionStatus, limit, offset int) ([]SessionRun, error)
	// Close releases the underlying connections.
	Close() error
}
