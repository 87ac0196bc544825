// Package xmltok is an incremental, push-driven XML tokenizer.
//
// Input is written in arbitrary chunks; complete tokens are reported to a
// Handler synchronously from inside Write. Text runs are reported only once
// they are terminated (by markup or end of input), so the sequence of
// callbacks does not depend on how the input was split. Comments, processing
// instructions, the XML declaration and DOCTYPE declarations are consumed
// without callbacks. CDATA sections are reported as character data.
//
// Errors are sticky: once a SyntaxError is recorded every later Write or
// Close returns it.
package xmltok

import (
	"bytes"
	"fmt"
)

// Attr is one attribute of a start tag, in source order.
type Attr struct {
	Name  string
	Value string
}

// Handler receives tokens as they are recognized.
type Handler interface {
	StartElement(name string, attrs []Attr, selfClosing bool)
	CharData(text string)
	EndElement(name string)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Tokenizer holds the state of one document. It is not safe for concurrent use.
type Tokenizer struct {
	h Handler

	// buf holds unconsumed input; buf[0] starts the current token.
	buf []byte
	// scan is how far into the current token a previous Write already looked.
	scan  int
	quote byte

	stack []string

	offset int64
	line   int
	col    int

	bomChecked bool
	closed     bool
	err        error
}

// New returns a Tokenizer reporting to h.
func New(h Handler) *Tokenizer {
	return &Tokenizer{h: h, line: 1, col: 1}
}

// Write feeds the next chunk of input. It never retains p.
func (t *Tokenizer) Write(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	if t.closed {
		return 0, ErrClosed
	}
	t.buf = append(t.buf, p...)
	t.run(false)
	return len(p), t.err
}

// Close signals end of input, flushing trailing text and reporting
// truncated markup or unclosed elements.
func (t *Tokenizer) Close() error {
	if t.closed {
		return t.err
	}
	t.closed = true
	if t.err != nil {
		return t.err
	}
	t.run(true)
	if t.err == nil && len(t.stack) > 0 {
		t.fail(fmt.Sprintf("%s <%s>", errUnclosedRoot, t.stack[len(t.stack)-1]))
	}
	t.buf = nil
	return t.err
}

// Err returns the recorded syntax error, if any.
func (t *Tokenizer) Err() error {
	return t.err
}

// Depth reports the number of currently open elements.
func (t *Tokenizer) Depth() int {
	return len(t.stack)
}

func (t *Tokenizer) run(atEOF bool) {
	if !t.bomChecked {
		if len(t.buf) < len(utf8BOM) && bytes.HasPrefix(utf8BOM, t.buf) && !atEOF {
			return
		}
		t.bomChecked = true
		if bytes.HasPrefix(t.buf, utf8BOM) {
			t.buf = t.buf[len(utf8BOM):]
			t.offset += int64(len(utf8BOM))
		}
	}
	pos := 0
	for t.err == nil && pos < len(t.buf) {
		n := t.next(t.buf[pos:], atEOF)
		if n == 0 {
			break
		}
		t.advance(t.buf[pos : pos+n])
		pos += n
		t.scan = 0
		t.quote = 0
	}
	if pos > 0 {
		t.buf = append(t.buf[:0], t.buf[pos:]...)
	}
}

// next consumes one token from the front of data and returns its length, or
// 0 when more input is needed or an error was recorded.
func (t *Tokenizer) next(data []byte, atEOF bool) int {
	if data[0] != '<' {
		return t.text(data, atEOF)
	}
	if len(data) < 2 {
		if atEOF {
			t.fail(errUnexpectedEOF)
		}
		return 0
	}
	switch data[1] {
	case '/':
		return t.endTag(data, atEOF)
	case '?':
		return t.skipUntil(data, "?>", 2, atEOF)
	case '!':
		return t.markup(data, atEOF)
	default:
		return t.startTag(data, atEOF)
	}
}

func (t *Tokenizer) text(data []byte, atEOF bool) int {
	end := len(data)
	if i := bytes.IndexByte(data[t.scan:], '<'); i >= 0 {
		end = t.scan + i
	} else if !atEOF {
		t.scan = len(data)
		return 0
	}
	raw := data[:end]
	if len(t.stack) == 0 {
		if ws := spaceLen(raw); ws < len(raw) {
			t.failAt(raw[:ws], errTextOutsideRoot)
			return 0
		}
		return end
	}
	s, at, msg := decodeEntities(raw)
	if msg != "" {
		t.failAt(raw[:at], msg)
		return 0
	}
	t.h.CharData(s)
	return end
}

func (t *Tokenizer) skipUntil(data []byte, term string, from int, atEOF bool) int {
	start := max(from, t.scan-len(term)+1)
	if i := bytes.Index(data[start:], []byte(term)); i >= 0 {
		return start + i + len(term)
	}
	if atEOF {
		t.fail(errUnexpectedEOF)
		return 0
	}
	t.scan = len(data)
	return 0
}

const (
	commentOpen = "<!--"
	cdataOpen   = "<![CDATA["
)

func (t *Tokenizer) markup(data []byte, atEOF bool) int {
	switch {
	case bytes.HasPrefix(data, []byte(commentOpen)):
		return t.skipUntil(data, "-->", len(commentOpen), atEOF)
	case bytes.HasPrefix(data, []byte(cdataOpen)):
		return t.cdata(data, atEOF)
	case len(data) < len(cdataOpen) &&
		(bytes.HasPrefix([]byte(commentOpen), data) || bytes.HasPrefix([]byte(cdataOpen), data)):
		if atEOF {
			t.fail(errUnexpectedEOF)
		}
		return 0
	default:
		return t.directive(data, atEOF)
	}
}

func (t *Tokenizer) cdata(data []byte, atEOF bool) int {
	n := t.skipUntil(data, "]]>", len(cdataOpen), atEOF)
	if n == 0 {
		return 0
	}
	if len(t.stack) == 0 {
		t.fail(errCDATAOutsideRoot)
		return 0
	}
	content := data[len(cdataOpen) : n-3]
	if at, msg := checkChars(content); msg != "" {
		t.failAt(data[:len(cdataOpen)+at], msg)
		return 0
	}
	if len(content) > 0 {
		t.h.CharData(string(normalizeNewlines(content)))
	}
	return n
}

// directive skips <!DOCTYPE ...> and similar declarations, including an
// internal subset in brackets. Comments and processing instructions inside
// the subset are skipped whole so quotes in them are not tracked.
func (t *Tokenizer) directive(data []byte, atEOF bool) int {
	if len(data) > 2 && !isNameStart(data[2]) {
		t.fail(errMalformedMarkup)
		return 0
	}
	depth := 0
	var quote byte
	for i := 2; i < len(data); i++ {
		c := data[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case depth > 0 && c == '<':
			n, ok := subsetMarkupLen(data[i:])
			if !ok {
				if atEOF {
					t.fail(errUnexpectedEOF)
				}
				return 0
			}
			i += n - 1
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth < 0 {
				t.failAt(data[:i], errMalformedMarkup)
				return 0
			}
		case c == '>' && depth == 0:
			return i + 1
		}
	}
	if atEOF {
		t.fail(errUnexpectedEOF)
	}
	return 0
}

// subsetMarkupLen returns the length of a comment or processing instruction
// at the start of data, 1 for any other '<', and false when data ends before
// the construct can be recognized or closed.
func subsetMarkupLen(data []byte) (int, bool) {
	for _, m := range []struct{ open, close string }{
		{commentOpen, "-->"},
		{"<?", "?>"},
	} {
		switch {
		case bytes.HasPrefix(data, []byte(m.open)):
			end := bytes.Index(data[len(m.open):], []byte(m.close))
			if end < 0 {
				return 0, false
			}
			return len(m.open) + end + len(m.close), true
		case len(data) < len(m.open) && bytes.HasPrefix([]byte(m.open), data):
			return 0, false
		}
	}
	return 1, true
}

func (t *Tokenizer) endTag(data []byte, atEOF bool) int {
	start := max(2, t.scan)
	i := bytes.IndexByte(data[start:], '>')
	if i < 0 {
		if atEOF {
			t.fail(errUnexpectedEOF)
			return 0
		}
		t.scan = len(data)
		return 0
	}
	end := start + i
	name := data[2 : 2+nameLen(data[2:end])]
	switch {
	case len(data[2:end]) == 0:
		t.fail(errEmptyCloseTagName)
		return 0
	case len(name) == 0 || spaceLen(data[2+len(name):end]) != end-2-len(name):
		t.failAt(data[:2], errInvalidName)
		return 0
	case len(t.stack) == 0:
		t.fail(fmt.Sprintf("%s </%s>", errUnexpectedClose, name))
		return 0
	}
	top := t.stack[len(t.stack)-1]
	if top != string(name) {
		t.fail(fmt.Sprintf("%s </%s>, expected </%s>", errMismatchedClose, name, top))
		return 0
	}
	t.stack = t.stack[:len(t.stack)-1]
	t.h.EndElement(top)
	return end + 1
}

func (t *Tokenizer) startTag(data []byte, atEOF bool) int {
	i := max(t.scan, 1)
	q := t.quote
	for ; i < len(data); i++ {
		c := data[i]
		if q != 0 {
			if c == q {
				q = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			q = c
			continue
		}
		if c == '>' {
			break
		}
	}
	if i == len(data) {
		if atEOF {
			t.fail(errUnexpectedEOF)
			return 0
		}
		t.scan, t.quote = i, q
		return 0
	}
	body := data[1:i]
	selfClosing := len(body) > 0 && body[len(body)-1] == '/'
	if selfClosing {
		body = body[:len(body)-1]
	}
	name, attrs, at, msg := parseTag(body)
	if msg != "" {
		t.failAt(data[:1+at], msg)
		return 0
	}
	if !selfClosing {
		t.stack = append(t.stack, name)
	}
	t.h.StartElement(name, attrs, selfClosing)
	return i + 1
}

// parseTag splits the inside of a start tag into its name and attributes.
// On failure it returns the offending index within body and a message.
func parseTag(body []byte) (string, []Attr, int, string) {
	n := nameLen(body)
	if n == 0 {
		return "", nil, 0, errInvalidName
	}
	name := string(body[:n])
	var attrs []Attr
	i := n
	for {
		ws := i + spaceLen(body[i:])
		if ws == len(body) {
			return name, attrs, 0, ""
		}
		if ws == i {
			return "", nil, i, errInvalidAttr
		}
		i = ws
		an := nameLen(body[i:])
		if an == 0 {
			return "", nil, i, errInvalidName
		}
		attrName := string(body[i : i+an])
		i += an
		i += spaceLen(body[i:])
		if i >= len(body) || body[i] != '=' {
			return "", nil, i, errInvalidAttr
		}
		i++
		i += spaceLen(body[i:])
		if i >= len(body) || (body[i] != '"' && body[i] != '\'') {
			return "", nil, i, errUnquotedAttr
		}
		end := bytes.IndexByte(body[i+1:], body[i])
		if end < 0 {
			return "", nil, i, errInvalidAttr
		}
		raw := body[i+1 : i+1+end]
		if lt := bytes.IndexByte(raw, '<'); lt >= 0 {
			return "", nil, i + 1 + lt, errLessThanInAttr
		}
		value, at, msg := decodeEntities(raw)
		if msg != "" {
			return "", nil, i + 1 + at, msg
		}
		attrs = setAttr(attrs, attrName, value)
		i += end + 2
	}
}

// setAttr keeps the first position of a repeated attribute and the last value.
func setAttr(attrs []Attr, name, value string) []Attr {
	for i := range attrs {
		if attrs[i].Name == name {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, Attr{Name: name, Value: value})
}

func (t *Tokenizer) advance(consumed []byte) {
	t.offset += int64(len(consumed))
	if nl := bytes.Count(consumed, []byte{'\n'}); nl > 0 {
		t.line += nl
		t.col = len(consumed) - bytes.LastIndexByte(consumed, '\n')
		return
	}
	t.col += len(consumed)
}

func (t *Tokenizer) fail(msg string) {
	t.failAt(nil, msg)
}

// failAt records a SyntaxError positioned just after prefix, which must
// start at the current token.
func (t *Tokenizer) failAt(prefix []byte, msg string) {
	line, col := t.line, t.col
	if nl := bytes.Count(prefix, []byte{'\n'}); nl > 0 {
		line += nl
		col = len(prefix) - bytes.LastIndexByte(prefix, '\n')
	} else {
		col += len(prefix)
	}
	t.err = &SyntaxError{
		Offset: t.offset + int64(len(prefix)),
		Line:   line,
		Column: col,
		Msg:    msg,
	}
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == ':' || c >= 0x80
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '.'
}

func nameLen(b []byte) int {
	if len(b) == 0 || !isNameStart(b[0]) {
		return 0
	}
	n := 1
	for n < len(b) && isNameChar(b[n]) {
		n++
	}
	return n
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func spaceLen(b []byte) int {
	n := 0
	for n < len(b) && isSpace(b[n]) {
		n++
	}
	return n
}
