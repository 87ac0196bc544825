// Package transform rebuilds XML from saxstream events, optionally pruning
// subtrees and whitespace on the way through.
package transform

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// Copier re-serializes events to a writer. It is driven by a single parse
// session and is not safe for concurrent use.
type Copier struct {
	w        *bufio.Writer
	drop     map[string]struct{}
	trim     bool
	dropping int
	written  int64
	err      error
}

// Option configures a Copier.
type Option func(*Copier)

// WithDrop removes every element with one of the given names, along with its
// attributes and descendants.
func WithDrop(names ...string) Option {
	return func(c *Copier) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				c.drop[n] = struct{}{}
			}
		}
	}
}

// WithTrimWhitespace skips text events that contain only whitespace.
func WithTrimWhitespace() Option {
	return func(c *Copier) {
		c.trim = true
	}
}

// NewCopier builds a Copier writing to w.
func NewCopier(w io.Writer, opts ...Option) *Copier {
	c := &Copier{
		w:    bufio.NewWriter(w),
		drop: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handlers returns the handler set to pass to saxstream.Parse. The End
// handler flushes buffered output.
func (c *Copier) Handlers() saxstream.Handlers {
	return saxstream.Handlers{
		OpenTag:  c.openTag,
		Text:     c.text,
		CloseTag: c.closeTag,
		End: func(context.Context) error {
			return c.Flush()
		},
	}
}

// Flush writes any buffered output and returns the first write error seen.
func (c *Copier) Flush() error {
	if c.err != nil {
		return c.err
	}
	if err := c.w.Flush(); err != nil {
		c.err = fmt.Errorf("flush output: %w", err)
	}
	return c.err
}

// Written reports how many bytes have been produced so far, including
// bytes still buffered.
func (c *Copier) Written() int64 {
	return c.written
}

func (c *Copier) openTag(_ context.Context, ev saxstream.OpenTag) error {
	if c.dropping > 0 {
		if !ev.SelfClosing {
			c.dropping++
		}
		return nil
	}
	if _, ok := c.drop[ev.Name]; ok {
		if !ev.SelfClosing {
			c.dropping = 1
		}
		return nil
	}
	out := saxstream.RenderOpenTag(ev)
	if ev.SelfClosing {
		out += saxstream.RenderCloseTag(saxstream.CloseTag{Name: ev.Name, SelfClosing: true})
	}
	return c.write(out)
}

func (c *Copier) text(_ context.Context, ev saxstream.Text) error {
	if c.dropping > 0 {
		return nil
	}
	if c.trim && strings.TrimSpace(ev.Content) == "" {
		return nil
	}
	return c.write(saxstream.EscapeText(ev.Content))
}

func (c *Copier) closeTag(_ context.Context, ev saxstream.CloseTag) error {
	if c.dropping > 0 {
		c.dropping--
		return nil
	}
	return c.write(saxstream.RenderCloseTag(ev))
}

func (c *Copier) write(s string) error {
	if c.err != nil {
		return c.err
	}
	n, err := c.w.WriteString(s)
	c.written += int64(n)
	if err != nil {
		c.err = fmt.Errorf("write output: %w", err)
	}
	return c.err
}
