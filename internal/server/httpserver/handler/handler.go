package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AgenciaV10/wsnap/internal/autoheal"
	"github.com/AgenciaV10/wsnap/internal/core/domain"
	"github.com/AgenciaV10/wsnap/internal/core/service"
	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
	"github.com/AgenciaV10/wsnap/internal/workspace"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// SnapshotService is the part of service.WorkspaceService the API uses.
type SnapshotService interface {
	Save(ctx context.Context, id string, opts service.SaveOptions) (*domain.Record, error)
	Schedule(id string, opts service.SaveOptions) bool
	Pending(id string) bool
	Restore(ctx context.Context, id string) (*workspace.RestoreResult, error)
	Get(ctx context.Context, id string) (*domain.Record, error)
	List(ctx context.Context) ([]domain.Summary, error)
	Delete(ctx context.Context, id string) error
	SetStartCommand(ctx context.Context, id, command string) error
	StartCommand(ctx context.Context, id string) (string, error)
	Heal(ctx context.Context, id string, e autoheal.PreviewError) (*autoheal.Patch, error)
}

// ReadyFunc reports whether the daemon can serve requests.
type ReadyFunc func(ctx context.Context) error

// Handler routes API requests to the snapshot service.
type Handler struct {
	svc    SnapshotService
	ready  ReadyFunc
	logger *slog.Logger
	mux    *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithReady sets the readiness check behind GET /ready.
func WithReady(fn ReadyFunc) Option {
	return func(h *Handler) {
		h.ready = fn
	}
}

// New creates a Handler serving svc.
func New(svc SnapshotService, log *slog.Logger, opts ...Option) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		svc:    svc,
		logger: log,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /v1/snapshots", h.handleList)
	h.mux.HandleFunc("GET /v1/snapshots/{id}", h.handleGet)
	h.mux.HandleFunc("POST /v1/snapshots/{id}", h.handleSave)
	h.mux.HandleFunc("DELETE /v1/snapshots/{id}", h.handleDelete)
	h.mux.HandleFunc("POST /v1/snapshots/{id}/schedule", h.handleSchedule)
	h.mux.HandleFunc("POST /v1/snapshots/{id}/restore", h.handleRestore)
	h.mux.HandleFunc("GET /v1/snapshots/{id}/start-command", h.handleGetStartCommand)
	h.mux.HandleFunc("PUT /v1/snapshots/{id}/start-command", h.handlePutStartCommand)
	h.mux.HandleFunc("POST /v1/snapshots/{id}/preview-errors", h.handlePreviewError)
}

// writeJSON writes a JSON response with the standard envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	response := NewResponse(logger.RequestIDFromContext(r.Context()), data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with the standard envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	response := NewErrorResponse(logger.RequestIDFromContext(r.Context()), code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := errorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			logger.L(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		}
		h.writeError(w, r, status, de.Code, de.Message, de.Details)
		return
	}

	logger.L(r.Context()).Error("internal error", "path", r.URL.Path, "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, domain.ErrInternal.Message, "")
}

// decodeBody decodes an optional JSON body into dst. An empty body
// leaves dst untouched.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid JSON body", err.Error())
		return false
	}
	return true
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4220"):
		return http.StatusUnprocessableEntity
	case strings.HasSuffix(code, "-4030"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "WS-ARG-"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"), strings.HasSuffix(code, "-5020"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
