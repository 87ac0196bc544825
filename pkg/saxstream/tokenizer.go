package saxstream

import (
	"github.com/JakeFAU/xmlstream/internal/xmltok"
)

// TokenHandler receives tokens from a Tokenizer, synchronously from inside
// Write or Close.
type TokenHandler interface {
	OpenTag(name string, attrs Attributes, selfClosing bool)
	Text(content string)
	CloseTag(name string)
}

// Tokenizer is the incremental lexer driven by the generator. Write must not
// retain the chunk. Once a fatal error is recorded, Err reports it and no
// further tokens are trusted. Close must not report an End event; that is
// produced by the generator.
type Tokenizer interface {
	Write(chunk []byte) (int, error)
	Close() error
	Err() error
}

// TokenizerFactory builds a fresh Tokenizer for one parse session.
type TokenizerFactory func(TokenHandler) Tokenizer

// NewTokenizer is the default TokenizerFactory.
func NewTokenizer(h TokenHandler) Tokenizer {
	return xmltok.New(tokenBridge{h: h})
}

type tokenBridge struct {
	h TokenHandler
}

func (b tokenBridge) StartElement(name string, attrs []xmltok.Attr, selfClosing bool) {
	var out Attributes
	if len(attrs) > 0 {
		out = make(Attributes, len(attrs))
		for i, attr := range attrs {
			out[i] = Attr(attr)
		}
	}
	b.h.OpenTag(name, out, selfClosing)
}

func (b tokenBridge) CharData(text string) {
	b.h.Text(text)
}

func (b tokenBridge) EndElement(name string) {
	b.h.CloseTag(name)
}

// tokenizerAdapter accumulates the events recognized during one feed.
// It is owned by a single generator.
type tokenizerAdapter struct {
	tok     Tokenizer
	pending []Event
}

func newTokenizerAdapter(factory TokenizerFactory) *tokenizerAdapter {
	a := &tokenizerAdapter{}
	a.tok = factory(a)
	return a
}

func (a *tokenizerAdapter) OpenTag(name string, attrs Attributes, selfClosing bool) {
	a.pending = append(a.pending, OpenTag{Name: name, Attributes: attrs, SelfClosing: selfClosing})
}

func (a *tokenizerAdapter) Text(content string) {
	a.pending = append(a.pending, Text{Content: content})
}

func (a *tokenizerAdapter) CloseTag(name string) {
	a.pending = append(a.pending, CloseTag{Name: name})
}

// feed writes one chunk and returns the events it completed.
func (a *tokenizerAdapter) feed(chunk []byte) ([]Event, error) {
	_, werr := a.tok.Write(chunk)
	if err := a.check(werr); err != nil {
		return nil, err
	}
	return a.take(), nil
}

// finalize closes the tokenizer and returns any events it flushed.
func (a *tokenizerAdapter) finalize() ([]Event, error) {
	cerr := a.tok.Close()
	if err := a.check(cerr); err != nil {
		return nil, err
	}
	return a.take(), nil
}

func (a *tokenizerAdapter) check(opErr error) error {
	err := a.tok.Err()
	if err == nil {
		err = opErr
	}
	if err == nil {
		return nil
	}
	a.pending = nil
	return toSyntaxError(err)
}

func (a *tokenizerAdapter) take() []Event {
	batch := a.pending
	if batch == nil {
		batch = []Event{}
	}
	a.pending = nil
	return batch
}
