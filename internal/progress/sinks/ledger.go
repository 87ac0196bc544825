package sinks

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/xmlstream/internal/progress"
)

// SessionSummary is the per-session roll-up built from progress events.
type SessionSummary struct {
	SessionID  uuid.UUID     `json:"session_id" yaml:"session_id"`
	Source     string        `json:"source" yaml:"source"`
	Status     string        `json:"status" yaml:"status"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration"`
	Chunks     int64         `json:"chunks" yaml:"chunks"`
	Bytes      int64         `json:"bytes" yaml:"bytes"`
	Events     int64         `json:"events" yaml:"events"`
	ErrorClass string        `json:"error_class,omitempty" yaml:"error_class,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary statuses.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// ledger folds CHUNK events into per-session summaries until the session
// finishes. Sessions whose start was dropped still get a summary, with
// StartedAt derived from the completion time and duration.
type ledger struct {
	mu   sync.Mutex
	open map[[16]byte]*SessionSummary
}

func newLedger() *ledger {
	return &ledger{open: make(map[[16]byte]*SessionSummary)}
}

// observe applies evt and returns the finished summary, if evt completed one.
func (l *ledger) observe(evt progress.Event) (SessionSummary, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum, ok := l.open[evt.SessionID]
	if !ok {
		sum = &SessionSummary{
			SessionID: evt.SessionUUID(),
			Source:    evt.Source,
			StartedAt: evt.TS,
		}
		l.open[evt.SessionID] = sum
	}
	switch evt.Stage {
	case progress.StageChunk:
		sum.Chunks++
		return SessionSummary{}, false
	case progress.StageSessionDone, progress.StageSessionError:
	default:
		return SessionSummary{}, false
	}

	delete(l.open, evt.SessionID)
	sum.FinishedAt = evt.TS
	sum.Duration = evt.Dur
	sum.Bytes = evt.Bytes
	sum.Events = evt.Events
	if !ok {
		sum.StartedAt = evt.TS.Add(-evt.Dur)
	}
	sum.Status = statusSuccess
	if evt.Stage == progress.StageSessionError {
		sum.Status = statusError
		sum.ErrorClass = string(evt.ErrorClass)
		sum.Error = evt.Note
	}
	return *sum, true
}

// pending reports how many sessions have started but not finished.
func (l *ledger) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}
