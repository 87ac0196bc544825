package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/config"
	"github.com/JakeFAU/xmlstream/internal/metrics"
	"github.com/JakeFAU/xmlstream/internal/store"
	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// Parser runs one parse session over r with the service defaults applied.
// Options passed by the caller take precedence over those defaults.
type Parser interface {
	ParseReader(ctx context.Context, source string, r io.Reader, h saxstream.Handlers, opts ...saxstream.Option) error
}

// Deps are the collaborators the Server routes to. Sessions, Gatherer and
// Metrics are optional.
type Deps struct {
	Parser   Parser
	Sessions store.SessionRepository
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTP
	Logger   *zap.Logger
}

// Server wires HTTP handlers to the parser and session history.
type Server struct {
	router   chi.Router
	parser   Parser
	logger   *zap.Logger
	maxBody  int64
	sessions *SessionHandler
}

const defaultRequestTimeout = 60 * time.Second

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.ServerConfig) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	s := &Server{
		parser:   deps.Parser,
		logger:   logger,
		maxBody:  cfg.MaxBodyBytes,
		sessions: NewSessionHandler(deps.Sessions, logger),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", s.streamEvents)
		r.Post("/copy", s.copyDocument)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.sessions.ListSessions)
			r.Get("/{session_id}", s.sessions.GetSession)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.parser == nil {
		writeError(w, http.StatusServiceUnavailable, "parser unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
