package handler

import (
	"time"

	"github.com/AgenciaV10/wsnap/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use this format except /metrics.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   string `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message, details string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// SaveRequest is the optional body of POST /v1/snapshots/{id} and
// POST /v1/snapshots/{id}/schedule.
type SaveRequest struct {
	LastStartCommand string `json:"last_start_command,omitempty"`
}

// SaveResponse is returned by a synchronous save.
type SaveResponse struct {
	SessionID        string `json:"session_id"`
	CreatedAt        int64  `json:"created_at"`
	FileCount        int    `json:"file_count"`
	Size             int64  `json:"size"`
	LastStartCommand string `json:"last_start_command,omitempty"`
}

// ScheduleResponse is returned by POST /v1/snapshots/{id}/schedule.
type ScheduleResponse struct {
	SessionID string `json:"session_id"`
	// Replaced is true when a pending save was pushed back.
	Replaced bool `json:"replaced"`
}

// SnapshotResponse is returned by GET /v1/snapshots/{id}. Files is only
// populated when ?files=true.
type SnapshotResponse struct {
	SessionID        string             `json:"session_id"`
	Root             string             `json:"root"`
	CreatedAt        int64              `json:"created_at"`
	FileCount        int                `json:"file_count"`
	Size             int64              `json:"size"`
	LastStartCommand string             `json:"last_start_command,omitempty"`
	Paths            []string           `json:"paths"`
	Files            []domain.FileEntry `json:"files,omitempty"`
}

// ListResponse is returned by GET /v1/snapshots.
type ListResponse struct {
	Items []domain.Summary `json:"items"`
	Total int              `json:"total"`
}

// StartCommandRequest is the body of PUT /v1/snapshots/{id}/start-command.
type StartCommandRequest struct {
	Command string `json:"command"`
}

// StartCommandResponse reports the stored start command.
type StartCommandResponse struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command"`
}

func newSaveResponse(rec *domain.Record) SaveResponse {
	return SaveResponse{
		SessionID:        rec.SessionID,
		CreatedAt:        rec.CreatedAt,
		FileCount:        rec.FileCount(),
		Size:             rec.TotalBytes(),
		LastStartCommand: rec.LastStartCommand,
	}
}

func newSnapshotResponse(rec *domain.Record, withFiles bool) SnapshotResponse {
	paths := make([]string, 0, len(rec.Files))
	for _, f := range rec.Files {
		paths = append(paths, f.Path)
	}
	resp := SnapshotResponse{
		SessionID:        rec.SessionID,
		Root:             rec.Root,
		CreatedAt:        rec.CreatedAt,
		FileCount:        rec.FileCount(),
		Size:             rec.TotalBytes(),
		LastStartCommand: rec.LastStartCommand,
		Paths:            paths,
	}
	if withFiles {
		resp.Files = rec.Files
	}
	return resp
}
