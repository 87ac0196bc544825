package xmltok

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Write after Close has been called.
var ErrClosed = errors.New("xmltok: write after close")

const (
	errUnexpectedEOF     = "unexpected end of input"
	errInvalidName       = "invalid XML name"
	errInvalidEntity     = "invalid entity reference"
	errInvalidCharRef    = "invalid character reference"
	errInvalidAttr       = "invalid attribute syntax"
	errUnquotedAttr      = "attribute value must be quoted"
	errTextOutsideRoot   = "text data outside of root element"
	errCDATAOutsideRoot  = "CDATA section outside of root element"
	errUnexpectedClose   = "unexpected close tag"
	errMismatchedClose   = "mismatched close tag"
	errUnclosedRoot      = "unclosed tag"
	errMalformedMarkup   = "malformed markup declaration"
	errLessThanInAttr    = "'<' not allowed in attribute value"
	errEmptyCloseTagName = "close tag without a name"
	errInvalidUTF8       = "invalid UTF-8"
	errIllegalChar       = "illegal character"
)

// SyntaxError reports malformed input with the position of the offending token.
type SyntaxError struct {
	Offset int64
	Line   int
	Column int
	Msg    string
}

// Error formats the syntax error with location.
func (e *SyntaxError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("xml syntax error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("xml syntax error at offset %d: %s", e.Offset, e.Msg)
}
