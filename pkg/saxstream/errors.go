package saxstream

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/xmlstream/internal/xmltok"
)

var (
	// ErrUnsupportedEncoding is returned when WithEncoding names an unknown label.
	ErrUnsupportedEncoding = errors.New("saxstream: unsupported encoding")
	// ErrInvalidChunkSize is returned when WithChunkSize is given a non-positive size.
	ErrInvalidChunkSize = errors.New("saxstream: chunk size must be > 0")
	// ErrNoEnd is returned by Dispatch when the batch sequence finishes without an End event.
	ErrNoEnd = errors.New("saxstream: batch sequence ended without end event")
	// ErrBatchesConsumed is yielded when a batch sequence is ranged over a second time.
	ErrBatchesConsumed = errors.New("saxstream: batch sequence already consumed")
)

// SourceReadError reports that the input failed to produce a chunk, or that
// the parse context was canceled before the next read.
type SourceReadError struct {
	// Offset is the number of bytes successfully read before the failure.
	Offset int64
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read source at offset %d: %v", e.Offset, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// SyntaxError reports malformed XML detected by the tokenizer. Offset, Line
// and Column refer to the decoded UTF-8 stream; Offset is -1 when the
// tokenizer did not supply a position.
type SyntaxError struct {
	Offset int64
	Line   int
	Column int
	Msg    string
	Err    error
}

func (e *SyntaxError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("xml syntax error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
	case e.Offset >= 0:
		return fmt.Sprintf("xml syntax error at offset %d: %s", e.Offset, e.Msg)
	default:
		return "xml syntax error: " + e.Msg
	}
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// HandlerError wraps the failure returned by a registered handler together
// with the event it was handling.
type HandlerError struct {
	Kind  Kind
	Event Event
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler: %v", e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func toSyntaxError(err error) *SyntaxError {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se
	}
	var te *xmltok.SyntaxError
	if errors.As(err, &te) {
		return &SyntaxError{
			Offset: te.Offset,
			Line:   te.Line,
			Column: te.Column,
			Msg:    te.Msg,
			Err:    err,
		}
	}
	return &SyntaxError{Offset: -1, Msg: err.Error(), Err: err}
}
