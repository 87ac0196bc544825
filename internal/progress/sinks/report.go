package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/xmlstream/internal/progress"
)

// ObjectWriter stores report documents; storage backends satisfy it.
type ObjectWriter interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Report encodings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ReportSink writes one summary document per finished session to
// <prefix>/<session_id>.<format>.
type ReportSink struct {
	writer ObjectWriter
	prefix string
	format string
	logger *zap.Logger
	ledger *ledger
}

// NewReportSink validates format and builds a ReportSink.
func NewReportSink(w ObjectWriter, prefix, format string, logger *zap.Logger) (*ReportSink, error) {
	if w == nil {
		return nil, errors.New("report writer is required")
	}
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportSink{writer: w, prefix: prefix, format: format, logger: logger, ledger: newLedger()}, nil
}

// Consume folds the batch into session summaries and uploads finished ones.
// Upload failures are joined into the returned error; later sessions in the
// batch are still written.
func (s *ReportSink) Consume(ctx context.Context, batch []progress.Event) error {
	var errs []error
	for _, evt := range batch {
		sum, done := s.ledger.observe(evt)
		if !done {
			continue
		}
		uri, err := s.write(ctx, sum)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("session report written", zap.String("uri", uri))
	}
	return errors.Join(errs...)
}

func (s *ReportSink) write(ctx context.Context, sum SessionSummary) (string, error) {
	body, contentType, err := s.encode(sum)
	if err != nil {
		return "", err
	}
	key := path.Join(s.prefix, sum.SessionID.String()+"."+s.format)
	uri, err := s.writer.PutObject(ctx, key, contentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put report %s: %w", key, err)
	}
	return uri, nil
}

func (s *ReportSink) encode(sum SessionSummary) ([]byte, string, error) {
	if s.format == FormatYAML {
		body, err := yaml.Marshal(sum)
		if err != nil {
			return nil, "", fmt.Errorf("encode yaml report: %w", err)
		}
		return body, "application/yaml", nil
	}
	body, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode json report: %w", err)
	}
	return body, "application/json", nil
}

// Close logs sessions that never finished; their reports are not written.
func (s *ReportSink) Close(context.Context) error {
	if n := s.ledger.pending(); n > 0 {
		s.logger.Warn("sessions without completion event; no report written", zap.Int("sessions", n))
	}
	return nil
}
