package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/store"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
	sessionTimeout      = 3 * time.Second
)

// SessionHandler exposes read-only parse session history.
type SessionHandler struct {
	repo    store.SessionRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewSessionHandler wires the repository and logger. A nil repo makes every
// route answer 503.
func NewSessionHandler(repo store.SessionRepository, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		repo:    repo,
		timeout: sessionTimeout,
		logger:  logger,
	}
}

// ListSessions handles GET /v1/sessions?status=&limit=&offset=. It returns
// {"sessions": [...]} on success, 400 for invalid filters, 503 when the repo
// is unavailable, or 500 if the repository call fails.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "session repository unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultSessionLimit, maxSessionLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *store.SessionStatus
	if statusParam := strings.TrimSpace(r.URL.Query().Get("status")); statusParam != "" {
		statusVal, parseErr := ParseStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &statusVal
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.repo.ListSessions(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": ToSessionDTOs(runs),
	})
}

// GetSession handles GET /v1/sessions/{session_id}. It returns
// {"session": {...}} on success, 400 for malformed IDs, 404 when the
// repository reports store.ErrNotFound, 503 if the repo is not configured,
// or 500 otherwise.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "session repository unavailable")
		return
	}
	id, err := parseSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("get session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ToSessionDTO(run)})
}

func parseSessionID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "session_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("session_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid session_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

// ParseStatus accepts the status names used by the API and CLI filters.
func ParseStatus(input string) (store.SessionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "running":
		return store.StatusRunning, nil
	case "success", "ok", "done":
		return store.StatusSuccess, nil
	case "error", "failed", "failure":
		return store.StatusError, nil
	default:
		return "", errors.New("invalid status")
	}
}

// ToSessionDTOs converts repository rows into their JSON form.
func ToSessionDTOs(in []store.SessionRun) []SessionDTO {
	out := make([]SessionDTO, 0, len(in))
	for _, run := range in {
		out = append(out, ToSessionDTO(run))
	}
	return out
}

// ToSessionDTO converts one repository row into its JSON form.
func ToSessionDTO(run store.SessionRun) SessionDTO {
	return SessionDTO{
		ID:         run.ID.String(),
		Source:     run.Source,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     string(run.Status),
		Chunks:     run.Chunks,
		Bytes:      run.Bytes,
		Events:     run.Events,
		ErrorClass: run.ErrorClass,
		Error:      run.ErrorMessage,
	}
}

// SessionDTO is the wire form of a parse session.
type SessionDTO struct {
	ID         string     `json:"id" yaml:"id"`
	Source     string     `json:"source" yaml:"source"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Status     string     `json:"status" yaml:"status"`
	Chunks     int64      `json:"chunks" yaml:"chunks"`
	Bytes      int64      `json:"bytes" yaml:"bytes"`
	Events     int64      `json:"events" yaml:"events"`
	ErrorClass string     `json:"error_class,omitempty" yaml:"error_class,omitempty"`
	Error      *string    `json:"error,omitempty" yaml:"error,omitempty"`
}
