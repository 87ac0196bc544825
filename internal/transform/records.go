package transform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// Record is the flat, serializable form of one parse event.
type Record struct {
	Seq         int              `json:"seq"`
	Kind        string           `json:"kind"`
	Depth       int              `json:"depth"`
	Name        string           `json:"name,omitempty"`
	Attributes  []saxstream.Attr `json:"attributes,omitempty"`
	Text        string           `json:"text,omitempty"`
	SelfClosing bool             `json:"self_closing,omitempty"`
}

// RecordFormat selects how a RecordWriter encodes records.
type RecordFormat string

// Supported record formats.
const (
	FormatText  RecordFormat = "text"
	FormatJSONL RecordFormat = "json"
)

// ParseRecordFormat validates a user-supplied format name.
func ParseRecordFormat(s string) (RecordFormat, error) {
	switch f := RecordFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSONL, "jsonl", "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown record format %q", s)
	}
}

// RecordWriter turns events into one record per line. Like Copier it serves a
// single parse session.
type RecordWriter struct {
	w      *bufio.Writer
	enc    *json.Encoder
	format RecordFormat
	seq    int
	depth  int
	flush  bool
	err    error
}

// RecordOption configures a RecordWriter.
type RecordOption func(*RecordWriter)

// WithFlushEachRecord flushes after every record, for streaming responses.
func WithFlushEachRecord() RecordOption {
	return func(rw *RecordWriter) {
		rw.flush = true
	}
}

// NewRecordWriter builds a RecordWriter writing format to w.
func NewRecordWriter(w io.Writer, format RecordFormat, opts ...RecordOption) *RecordWriter {
	bw := bufio.NewWriter(w)
	rw := &RecordWriter{w: bw, enc: json.NewEncoder(bw), format: format}
	rw.enc.SetEscapeHTML(false)
	for _, opt := range opts {
		opt(rw)
	}
	return rw
}

// Handlers returns the handler set to pass to saxstream.Parse.
func (rw *RecordWriter) Handlers() saxstream.Handlers {
	return saxstream.Handlers{
		OpenTag: func(_ context.Context, ev saxstream.OpenTag) error {
			rec := rw.next(ev)
			if !ev.SelfClosing {
				rw.depth++
			}
			return rw.write(rec)
		},
		Text: func(_ context.Context, ev saxstream.Text) error {
			return rw.write(rw.next(ev))
		},
		CloseTag: func(_ context.Context, ev saxstream.CloseTag) error {
			rw.depth--
			return rw.write(rw.next(ev))
		},
		End: func(context.Context) error {
			if err := rw.write(rw.next(saxstream.End{})); err != nil {
				return err
			}
			return rw.Flush()
		},
	}
}

// Count reports how many records have been produced.
func (rw *RecordWriter) Count() int {
	return rw.seq
}

// Flush writes buffered records and returns the first error seen.
func (rw *RecordWriter) Flush() error {
	if rw.err != nil {
		return rw.err
	}
	if err := rw.w.Flush(); err != nil {
		rw.err = fmt.Errorf("flush records: %w", err)
	}
	return rw.err
}

func (rw *RecordWriter) next(ev saxstream.Event) Record {
	rw.seq++
	rec := Record{Seq: rw.seq, Kind: ev.Kind().String(), Depth: rw.depth}
	switch ev := ev.(type) {
	case saxstream.OpenTag:
		rec.Name = ev.Name
		rec.Attributes = ev.Attributes
		rec.SelfClosing = ev.SelfClosing
	case saxstream.Text:
		rec.Text = ev.Content
	case saxstream.CloseTag:
		rec.Name = ev.Name
	}
	return rec
}

func (rw *RecordWriter) write(rec Record) error {
	if rw.err != nil {
		return rw.err
	}
	var err error
	if rw.format == FormatJSONL {
		err = rw.enc.Encode(rec)
	} else {
		_, err = rw.w.WriteString(formatText(rec))
	}
	if err != nil {
		rw.err = fmt.Errorf("write record: %w", err)
		return rw.err
	}
	if rw.flush {
		return rw.Flush()
	}
	return nil
}

func formatText(rec Record) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", rec.Depth))
	b.WriteString(rec.Kind)
	switch rec.Kind {
	case saxstream.KindOpenTag.String():
		b.WriteString(" " + rec.Name)
		for _, a := range rec.Attributes {
			b.WriteString(" " + a.Name + "=" + strconv.Quote(a.Value))
		}
		if rec.SelfClosing {
			b.WriteString(" /")
		}
	case saxstream.KindCloseTag.String():
		b.WriteString(" " + rec.Name)
	case saxstream.KindText.String():
		b.WriteString(" " + strconv.Quote(rec.Text))
	}
	b.WriteByte('\n')
	return b.String()
}
