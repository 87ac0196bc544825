// Package progress defines the event structures emitted while parse sessions run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart Stage = "SESSION_START"
	StageChunk        Stage = "CHUNK"
	StageSessionDone  Stage = "SESSION_DONE"
	StageSessionError Stage = "SESSION_ERROR"
)

// ErrorClass is a coarse grouping of session failures.
type ErrorClass string

// Supported error classes, mirroring the saxstream failure kinds.
const (
	ErrorSource  ErrorClass = "source"
	ErrorSyntax  ErrorClass = "syntax"
	ErrorHandler ErrorClass = "handler"
	ErrorOther   ErrorClass = "other"
)

// Event captures a single step of a parse session.
type Event struct {
	// SessionID identifies the parse session using the 16-byte UUID form.
	SessionID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Source names the document being parsed; it should not contain credentials.
	Source string
	// Bytes is the chunk size for CHUNK events and the session total otherwise.
	Bytes int64
	// Events counts structural events for the chunk or the whole session.
	Events int64
	// ErrorClass is set on SESSION_ERROR.
	ErrorClass ErrorClass
	// Dur is the session runtime on completion events.
	Dur time.Duration
	// Note carries low-volume context such as the error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == [16]byte{} {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionDone:
	case StageChunk:
		if e.Bytes <= 0 {
			return errors.New("chunk requires bytes")
		}
	case StageSessionError:
		if e.ErrorClass == "" {
			return errors.New("session error requires error class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// SessionUUID converts the binary session ID to uuid.UUID.
func (e Event) SessionUUID() uuid.UUID {
	return uuid.UUID(e.SessionID)
}

// ClassifyError maps a Parse error onto an ErrorClass.
func ClassifyError(err error) ErrorClass {
	var (
		srcErr     *saxstream.SourceReadError
		syntaxErr  *saxstream.SyntaxError
		handlerErr *saxstream.HandlerError
	)
	switch {
	case errors.As(err, &handlerErr):
		return ErrorHandler
	case errors.As(err, &syntaxErr):
		return ErrorSyntax
	case errors.As(err, &srcErr):
		return ErrorSource
	default:
		return ErrorOther
	}
}
