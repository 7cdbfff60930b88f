package handler

import (
	"net/http"
	"strings"

	"github.com/AgenciaV10/wsnap/internal/autoheal"
	"github.com/AgenciaV10/wsnap/internal/core/domain"
	"github.com/AgenciaV10/wsnap/internal/core/service"
)

// handleList handles GET /v1/snapshots.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Summary{}
	}
	h.writeJSON(w, r, http.StatusOK, ListResponse{Items: items, Total: len(items)})
}

// handleGet handles GET /v1/snapshots/{id}.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	withFiles := strings.EqualFold(r.URL.Query().Get("files"), "true")
	h.writeJSON(w, r, http.StatusOK, newSnapshotResponse(rec, withFiles))
}

// handleSave handles POST /v1/snapshots/{id}.
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.Save(r.Context(), r.PathValue("id"), service.SaveOptions{
		LastStartCommand: req.LastStartCommand,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, newSaveResponse(rec))
}

// handleSchedule handles POST /v1/snapshots/{id}/schedule.
func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := domain.ValidateSessionID(id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	var req SaveRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	replaced := h.svc.Pending(id)
	if !h.svc.Schedule(id, service.SaveOptions{LastStartCommand: req.LastStartCommand}) {
		h.handleServiceError(w, r, domain.ErrServiceUnavailable.WithDetails("scheduler stopped"))
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, ScheduleResponse{SessionID: id, Replaced: replaced})
}

// handleRestore handles POST /v1/snapshots/{id}/restore.
func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Restore(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, result)
}

// handleDelete handles DELETE /v1/snapshots/{id}.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"session_id": id})
}

// handleGetStartCommand handles GET /v1/snapshots/{id}/start-command.
func (h *Handler) handleGetStartCommand(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cmd, err := h.svc.StartCommand(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, StartCommandResponse{SessionID: id, Command: cmd})
}

// handlePutStartCommand handles PUT /v1/snapshots/{id}/start-command.
// An empty command clears it.
func (h *Handler) handlePutStartCommand(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req StartCommandRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.SetStartCommand(r.Context(), id, req.Command); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, StartCommandResponse{SessionID: id, Command: strings.TrimSpace(req.Command)})
}

// handlePreviewError handles POST /v1/snapshots/{id}/preview-errors.
// The body is a preview runtime error; a matching rule patches the
// workspace and schedules a save.
func (h *Handler) handlePreviewError(w http.ResponseWriter, r *http.Request) {
	var req autoheal.PreviewError
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("message"))
		return
	}
	patch, err := h.svc.Heal(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, patch)
}
