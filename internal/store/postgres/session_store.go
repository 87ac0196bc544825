// Package postgres provides the Postgres-backed session repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/xmlstream/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

// SessionStore implements store.SessionRepository using Postgres.
type SessionStore struct {
	pool  Pool
	table string
}

var _ store.SessionRepository = (*SessionStore)(nil)

// New connects to Postgres and ensures the session table exists.
func New(ctx context.Context, cfg Config) (*SessionStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool Pool, table string) (*SessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "parse_sessions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SessionStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the session table when missing.
func (s *SessionStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			chunks BIGINT NOT NULL DEFAULT 0,
			bytes BIGINT NOT NULL DEFAULT 0,
			events BIGINT NOT NULL DEFAULT 0,
			error_class TEXT NOT NULL DEFAULT '',
			error_message TEXT
		);`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SessionStore) Close() error {
	s.pool.Close()
	return nil
}

// StartSession inserts a running row.
func (s *SessionStore) StartSession(ctx context.Context, id uuid.UUID, source string, startedAt time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, source, started_at, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING;`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, source, startedAt, store.StatusRunning); err != nil {
		return fmt.Errorf("failed to insert session start: %w", err)
	}
	return nil
}

// CompleteSession upserts the final status and totals.
func (s *SessionStore) CompleteSession(ctx context.Context, run store.SessionRun) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, source, started_at, finished_at, status, chunks, bytes, events, error_class, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			chunks = EXCLUDED.chunks,
			bytes = EXCLUDED.bytes,
			events = EXCLUDED.events,
			error_class = EXCLUDED.error_class,
			error_message = EXCLUDED.error_message;`, s.table)
	_, err := s.pool.Exec(ctx, query,
		run.ID,
		run.Source,
		run.StartedAt,
		run.FinishedAt,
		run.Status,
		run.Chunks,
		run.Bytes,
		run.Events,
		run.ErrorClass,
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

const selectColumns = `id, source, started_at, finished_at, status, chunks, bytes, events, error_class, error_message`

// GetSession retrieves a single session by its ID.
func (s *SessionStore) GetSession(ctx context.Context, id uuid.UUID) (store.SessionRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1;`, selectColumns, s.table)
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.SessionRun{}, store.ErrNotFound
	}
	if err != nil {
		return store.SessionRun{}, fmt.Errorf("failed to get session: %w", err)
	}
	return run, nil
}

// ListSessions retrieves sessions newest first with optional status filtering.
func (s *SessionStore) ListSessions(
	ctx context.Context,
	status *store.SessionStatus,
	limit,
	offset int,
) ([]store.SessionRun, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;`, selectColumns, s.table)
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.pool.Query(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var runs []store.SessionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.SessionRun, error) {
	var (
		run      store.SessionRun
		status   string
		finished pgtype.Timestamptz
		errMsg   pgtype.Text
	)
	err := row.Scan(
		&run.ID,
		&run.Source,
		&run.StartedAt,
		&finished,
		&status,
		&run.Chunks,
		&run.Bytes,
		&run.Events,
		&run.ErrorClass,
		&errMsg,
	)
	if err != nil {
		return store.SessionRun{}, err
	}
	run.Status = store.SessionStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if errMsg.Valid {
		msg := errMsg.String
		run.ErrorMessage = &msg
	}
	return run, nil
}
