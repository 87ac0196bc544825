package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/progress"
	"github.com/JakeFAU/xmlstream/internal/transform"
	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

const (
	headerSessionID  = "X-Session-ID"
	trailerParseErr  = "X-Parse-Error"
	defaultSourceTag = "http"
)

// streamEvents handles POST /v1/events?format=&encoding=&chunk_size=. The
// request body is parsed as it arrives and every event is written back as one
// line. Failures detected before any output was sent map to 4xx/5xx; later
// failures are reported as a final error line.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.parser == nil {
		writeError(w, http.StatusServiceUnavailable, "parser unavailable")
		return
	}
	format, err := transform.ParseRecordFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := parseQueryOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID := uuid.NewString()
	opts = append(opts, saxstream.WithSessionID(sessionID))

	out := &lazyWriter{w: w, contentType: recordContentType(format)}
	w.Header().Set(headerSessionID, sessionID)
	rw := transform.NewRecordWriter(out, format, transform.WithFlushEachRecord())

	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	err = s.parser.ParseReader(r.Context(), sourceName(r), body, rw.Handlers(), opts...)
	if err == nil {
		return
	}
	s.logParseFailure(r, sessionID, err)
	if !out.started {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeErrorRecord(r, out, format, err)
}

// copyDocument handles POST /v1/copy?drop=a,b&trim=true. The body is
// re-serialized as XML with the named elements removed. A failure after
// output started is reported in the X-Parse-Error trailer.
func (s *Server) copyDocument(w http.ResponseWriter, r *http.Request) {
	if s.parser == nil {
		writeError(w, http.StatusServiceUnavailable, "parser unavailable")
		return
	}
	opts, err := parseQueryOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var copyOpts []transform.Option
	if drop := strings.TrimSpace(r.URL.Query().Get("drop")); drop != "" {
		copyOpts = append(copyOpts, transform.WithDrop(strings.Split(drop, ",")...))
	}
	if trim := r.URL.Query().Get("trim"); trim != "" {
		on, perr := strconv.ParseBool(trim)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid trim")
			return
		}
		if on {
			copyOpts = append(copyOpts, transform.WithTrimWhitespace())
		}
	}
	sessionID := uuid.NewString()
	opts = append(opts, saxstream.WithSessionID(sessionID))

	w.Header().Set(headerSessionID, sessionID)
	w.Header().Set("Trailer", trailerParseErr)
	out := &lazyWriter{w: w, contentType: "application/xml; charset=utf-8"}
	c := transform.NewCopier(out, copyOpts...)

	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	err = s.parser.ParseReader(r.Context(), sourceName(r), body, c.Handlers(), opts...)
	if err == nil {
		return
	}
	s.logParseFailure(r, sessionID, err)
	if !out.started {
		w.Header().Del("Trailer")
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set(trailerParseErr, err.Error())
}

func (s *Server) logParseFailure(r *http.Request, sessionID string, err error) {
	s.logger.Warn("parse request failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("session_id", sessionID),
		zap.String("error_class", string(progress.ClassifyError(err))),
		zap.Error(err),
	)
}

func parseQueryOptions(r *http.Request) ([]saxstream.Option, error) {
	q := r.URL.Query()
	var opts []saxstream.Option
	if enc := strings.TrimSpace(q.Get("encoding")); enc != "" {
		opts = append(opts, saxstream.WithEncoding(enc))
	}
	if size := q.Get("chunk_size"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return nil, errors.New("invalid chunk_size")
		}
		opts = append(opts, saxstream.WithChunkSize(n))
	}
	return opts, nil
}

func sourceName(r *http.Request) string {
	if name := strings.TrimSpace(r.URL.Query().Get("source")); name != "" {
		return name
	}
	return defaultSourceTag
}

func recordContentType(format transform.RecordFormat) string {
	if format == transform.FormatJSONL {
		return "application/x-ndjson"
	}
	return "text/plain; charset=utf-8"
}

// statusFor maps a parse failure onto an HTTP status.
func statusFor(err error) int {
	var (
		maxErr    *http.MaxBytesError
		syntaxErr *saxstream.SyntaxError
		srcErr    *saxstream.SourceReadError
	)
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &syntaxErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &srcErr),
		errors.Is(err, saxstream.ErrUnsupportedEncoding),
		errors.Is(err, saxstream.ErrInvalidChunkSize):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorRecord reports a failure after output has started as a final
// record in the response format.
func (s *Server) writeErrorRecord(r *http.Request, out *lazyWriter, format transform.RecordFormat, err error) {
	class := progress.ClassifyError(err)
	var line []byte
	if format == transform.FormatJSONL {
		line, _ = json.Marshal(map[string]string{"error": err.Error(), "error_class": string(class)})
		line = append(line, '\n')
	} else {
		line = fmt.Appendf(nil, "error %s %q\n", class, err.Error())
	}
	if _, werr := out.Write(line); werr != nil {
		s.logger.Debug("write error record failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(werr),
		)
	}
	if f, ok := out.w.(http.Flusher); ok {
		f.Flush()
	}
}

// lazyWriter defers the 200 response until the first byte of output, so a
// parse that fails early can still answer with an error status.
type lazyWriter struct {
	w           http.ResponseWriter
	contentType string
	started     bool
}

func (l *lazyWriter) Write(p []byte) (int, error) {
	if !l.started {
		l.started = true
		l.w.Header().Set("Content-Type", l.contentType)
		l.w.WriteHeader(http.StatusOK)
	}
	n, err := l.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, nil
}
