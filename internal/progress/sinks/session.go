package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/xmlstream/internal/progress"
	"github.com/JakeFAU/xmlstream/internal/store"
)

// SessionSink records session history in a store.SessionRepository.
// The repository is owned by the caller and is not closed by Close.
type SessionSink struct {
	repo   store.SessionRepository
	ledger *ledger
}

// NewSessionSink wires a repository to the sink interface.
func NewSessionSink(repo store.SessionRepository) (*SessionSink, error) {
	if repo == nil {
		return nil, errors.New("session repository is required")
	}
	return &SessionSink{repo: repo, ledger: newLedger()}, nil
}

// Consume persists session starts and completions.
func (s *SessionSink) Consume(ctx context.Context, batch []progress.Event) error {
	var errs []error
	for _, evt := range batch {
		if evt.Stage == progress.StageSessionStart {
			if err := s.repo.StartSession(ctx, evt.SessionUUID(), evt.Source, evt.TS); err != nil {
				errs = append(errs, fmt.Errorf("session %s start: %w", evt.SessionUUID(), err))
			}
		}
		sum, done := s.ledger.observe(evt)
		if !done {
			continue
		}
		if err := s.repo.CompleteSession(ctx, toRun(sum)); err != nil {
			errs = append(errs, fmt.Errorf("session %s complete: %w", sum.SessionID, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *SessionSink) Close(context.Context) error {
	return nil
}

func toRun(sum SessionSummary) store.SessionRun {
	finished := sum.FinishedAt
	run := store.SessionRun{
		ID:         sum.SessionID,
		Source:     sum.Source,
		StartedAt:  sum.StartedAt,
		FinishedAt: &finished,
		Status:     store.StatusSuccess,
		Chunks:     sum.Chunks,
		Bytes:      sum.Bytes,
		Events:     sum.Events,
	}
	if sum.Status == statusError {
		run.Status = store.StatusError
		run.ErrorClass = sum.ErrorClass
		msg := sum.Error
		run.ErrorMessage = &msg
	}
	return run
}
