// Package sqlite provides a single-process session repository on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/JakeFAU/xmlstream/internal/store"
)

// ErrStoreClosed is returned by every method after Close.
var ErrStoreClosed = errors.New("session store is closed")

// SessionStore persists parse sessions to SQLite.
type SessionStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ store.SessionRepository = (*SessionStore)(nil)

// New opens (or creates) the database at path and ensures the schema.
// Use a file path such as "./sessions.db".
func New(ctx context.Context, path string) (*SessionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS parse_sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			chunks INTEGER NOT NULL DEFAULT 0,
			bytes INTEGER NOT NULL DEFAULT 0,
			events INTEGER NOT NULL DEFAULT 0,
			error_class TEXT NOT NULL DEFAULT '',
			error_message TEXT
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_parse_sessions_started_at
		ON parse_sessions(started_at)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// StartSession implements store.SessionRepository.
func (s *SessionStore) StartSession(ctx context.Context, id uuid.UUID, source string, startedAt time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parse_sessions (id, source, started_at, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id.String(), source, formatTime(startedAt), string(store.StatusRunning))
	if err != nil {
		return fmt.Errorf("insert session start: %w", err)
	}
	return nil
}

// CompleteSession implements store.SessionRepository.
func (s *SessionStore) CompleteSession(ctx context.Context, run store.SessionRun) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	var finished any
	if run.FinishedAt != nil {
		finished = formatTime(*run.FinishedAt)
	}
	var errMsg any
	if run.ErrorMessage != nil {
		errMsg = *run.ErrorMessage
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parse_sessions (id, source, started_at, finished_at, status, chunks, bytes, events, error_class, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			chunks = excluded.chunks,
			bytes = excluded.bytes,
			events = excluded.events,
			error_class = excluded.error_class,
			error_message = excluded.error_message
	`, run.ID.String(), run.Source, formatTime(run.StartedAt), finished, string(run.Status),
		run.Chunks, run.Bytes, run.Events, run.ErrorClass, errMsg)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

const selectColumns = `id, source, started_at, finished_at, status, chunks, bytes, events, error_class, error_message`

// GetSession implements store.SessionRepository.
func (s *SessionStore) GetSession(ctx context.Context, id uuid.UUID) (store.SessionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.SessionRun{}, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM parse_sessions WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.SessionRun{}, store.ErrNotFound
	}
	if err != nil {
		return store.SessionRun{}, fmt.Errorf("get session: %w", err)
	}
	return run, nil
}

// ListSessions implements store.SessionRepository.
func (s *SessionStore) ListSessions(
	ctx context.Context,
	status *store.SessionStatus,
	limit,
	offset int,
) ([]store.SessionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var filter any
	if status != nil {
		filter = string(*status)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM parse_sessions
		WHERE (? IS NULL OR status = ?)
		ORDER BY started_at DESC, id
		LIMIT ? OFFSET ?
	`, filter, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var runs []store.SessionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return runs, nil
}

// Close implements store.SessionRepository.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (store.SessionRun, error) {
	var (
		run                store.SessionRun
		id, started        string
		status             string
		finished, errorMsg sql.NullString
	)
	err := row.Scan(
		&id,
		&run.Source,
		&started,
		&finished,
		&status,
		&run.Chunks,
		&run.Bytes,
		&run.Events,
		&run.ErrorClass,
		&errorMsg,
	)
	if err != nil {
		return store.SessionRun{}, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return store.SessionRun{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return store.SessionRun{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return store.SessionRun{}, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	if errorMsg.Valid {
		msg := errorMsg.String
		run.ErrorMessage = &msg
	}
	run.Status = store.SessionStatus(status)
	return run, nil
}

// formatTime uses a fixed-width layout so started_at sorts lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
