package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/AgenciaV10/wsnap/internal/autoheal"
	"github.com/AgenciaV10/wsnap/internal/core/service"
	"github.com/AgenciaV10/wsnap/internal/storage"
	"github.com/AgenciaV10/wsnap/internal/storage/snapshot"
	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
	"github.com/AgenciaV10/wsnap/internal/workspace"
)

type testEnv struct {
	h   *Handler
	svc *service.WorkspaceService
	fs  billy.Filesystem
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	fs := memfs.New()
	log := logger.Discard()
	store := snapshot.New(storage.NewMemoryEngine(), snapshot.WithLogger(log))
	svc := service.NewWorkspaceService(
		service.WorkspaceConfig{},
		store,
		workspace.NewWalker(fs, workspace.WithWalkerLogger(log)),
		workspace.NewApplier(fs, log),
		service.WithLogger(log),
		service.WithHealer(autoheal.New(fs, autoheal.WithLogger(log))),
	)
	t.Cleanup(func() { svc.Stop() })
	return &testEnv{h: New(svc, log, opts...), svc: svc, fs: fs}
}

func (e *testEnv) write(t *testing.T, files map[string]string) {
	t.Helper()
	for p, c := range files {
		if err := util.WriteFile(e.fs, p, []byte(c), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", p, err)
		}
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, target, rec.Body.String(), err)
	}
	return rec, resp
}

// decodeData re-decodes the envelope data into dst.
func decodeData(t *testing.T, resp Response, dst any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func TestHandler_Health(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || resp.Code != "OK" {
		t.Errorf("GET /health = %d %+v", rec.Code, resp)
	}
	if resp.Timestamp == 0 {
		t.Error("envelope timestamp not set")
	}
}

func TestHandler_Ready(t *testing.T) {
	env := newTestEnv(t)
	if rec, _ := env.do(t, http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /ready = %d, want 200", rec.Code)
	}

	failing := newTestEnv(t, WithReady(func(context.Context) error { return errors.New("engine closed") }))
	rec, resp := failing.do(t, http.MethodGet, "/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ready = %d, want 503", rec.Code)
	}
	if resp.Code != "WS-SYS-5030" || resp.Details != "engine closed" {
		t.Errorf("ready error = %+v", resp)
	}
}

func TestHandler_SaveGetList(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, map[string]string{"src/App.tsx": "export default App;", "index.html": "<html>"})

	rec, resp := env.do(t, http.MethodPost, "/v1/snapshots/chat-1", `{"last_start_command":"npm run dev"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save = %d %+v", rec.Code, resp)
	}
	var saved SaveResponse
	decodeData(t, resp, &saved)
	if saved.SessionID != "chat-1" || saved.FileCount != 2 || saved.LastStartCommand != "npm run dev" {
		t.Errorf("save response = %+v", saved)
	}

	rec, resp = env.do(t, http.MethodGet, "/v1/snapshots/chat-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	var snap SnapshotResponse
	decodeData(t, resp, &snap)
	if len(snap.Paths) != 2 || len(snap.Files) != 0 {
		t.Errorf("get without files = %+v", snap)
	}

	_, resp = env.do(t, http.MethodGet, "/v1/snapshots/chat-1?files=true", "")
	decodeData(t, resp, &snap)
	if len(snap.Files) != 2 {
		t.Errorf("get with files returned %d files", len(snap.Files))
	}

	_, resp = env.do(t, http.MethodGet, "/v1/snapshots", "")
	var list ListResponse
	decodeData(t, resp, &list)
	if list.Total != 1 || list.Items[0].SessionID != "chat-1" {
		t.Errorf("list = %+v", list)
	}
}

func TestHandler_SaveWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	if rec, resp := env.do(t, http.MethodPost, "/v1/snapshots/chat-1", ""); rec.Code != http.StatusOK {
		t.Errorf("save without body = %d %+v", rec.Code, resp)
	}
}

func TestHandler_BadBody(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodPost, "/v1/snapshots/chat-1", `{"unknown":1}`)
	if rec.Code != http.StatusBadRequest || resp.Code != "WS-SYS-4000" {
		t.Errorf("bad body = %d %+v", rec.Code, resp)
	}
	if rec.Header().Get("X-Error-Code") != "WS-SYS-4000" {
		t.Errorf("X-Error-Code = %q", rec.Header().Get("X-Error-Code"))
	}
}

func TestHandler_List_Empty(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodGet, "/v1/snapshots", "")
	var list ListResponse
	decodeData(t, resp, &list)
	if list.Items == nil || list.Total != 0 {
		t.Errorf("empty list = %+v, want non-nil empty items", list)
	}
}

func TestHandler_NotFound(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/snapshots/missing"},
		{http.MethodPost, "/v1/snapshots/missing/restore"},
	} {
		rec, resp := env.do(t, tc.method, tc.path, "")
		if rec.Code != http.StatusNotFound || resp.Code != "WS-SNAP-4040" {
			t.Errorf("%s %s = %d %+v, want 404", tc.method, tc.path, rec.Code, resp)
		}
	}
}

func TestHandler_Restore(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, map[string]string{"a.txt": "v1"})
	env.do(t, http.MethodPost, "/v1/snapshots/chat-1", "")
	env.write(t, map[string]string{"a.txt": "v2"})

	rec, resp := env.do(t, http.MethodPost, "/v1/snapshots/chat-1/restore", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("restore = %d %+v", rec.Code, resp)
	}
	var result workspace.RestoreResult
	decodeData(t, resp, &result)
	if !result.Restored || result.Written != 1 {
		t.Errorf("restore result = %+v", result)
	}

	f, err := env.fs.Open("a.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	b, _ := io.ReadAll(f)
	if string(b) != "v1" {
		t.Errorf("a.txt = %q, want v1", b)
	}
}

func TestHandler_Schedule(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/v1/snapshots/chat-1/schedule", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("schedule = %d %+v", rec.Code, resp)
	}
	var first ScheduleResponse
	decodeData(t, resp, &first)
	if first.Replaced {
		t.Error("first schedule should not replace")
	}

	_, resp = env.do(t, http.MethodPost, "/v1/snapshots/chat-1/schedule", "")
	var second ScheduleResponse
	decodeData(t, resp, &second)
	if !second.Replaced {
		t.Error("second schedule should replace the pending save")
	}

	env.svc.Stop()
	rec, resp = env.do(t, http.MethodPost, "/v1/snapshots/chat-1/schedule", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("schedule after stop = %d %+v, want 503", rec.Code, resp)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodPost, "/v1/snapshots/a%20b/schedule", "")
	if rec.Code != http.StatusBadRequest || resp.Code != "WS-SNAP-4001" {
		t.Errorf("schedule invalid id = %d %+v", rec.Code, resp)
	}
}

func TestHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/v1/snapshots/chat-1", "")

	if rec, _ := env.do(t, http.MethodDelete, "/v1/snapshots/chat-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec, _ := env.do(t, http.MethodGet, "/v1/snapshots/chat-1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
	if rec, _ := env.do(t, http.MethodDelete, "/v1/snapshots/chat-1", ""); rec.Code != http.StatusOK {
		t.Errorf("second delete = %d, want 200", rec.Code)
	}
}

func TestHandler_StartCommand(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPut, "/v1/snapshots/chat-1/start-command", `{"command":"  pnpm dev  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put = %d %+v", rec.Code, resp)
	}
	var put StartCommandResponse
	decodeData(t, resp, &put)
	if put.Command != "pnpm dev" {
		t.Errorf("put command = %q, want trimmed", put.Command)
	}

	_, resp = env.do(t, http.MethodGet, "/v1/snapshots/chat-1/start-command", "")
	var got StartCommandResponse
	decodeData(t, resp, &got)
	if got.Command != "pnpm dev" {
		t.Errorf("get command = %q", got.Command)
	}
}

func TestHandler_PreviewError(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, map[string]string{"src/App.tsx": "function App() { return null }\n"})

	body, _ := json.Marshal(autoheal.PreviewError{
		Type:    autoheal.TypeUncaughtException,
		Message: "The requested module '/src/App.tsx' does not provide an export named 'default'",
		Stack:   "SyntaxError\n    at http://localhost:5173/src/App.tsx:1:1",
	})
	rec, resp := env.do(t, http.MethodPost, "/v1/snapshots/chat-1/preview-errors", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("preview error = %d %+v", rec.Code, resp)
	}
	var patch autoheal.Patch
	decodeData(t, resp, &patch)
	if patch.Rule != autoheal.RuleAppDefaultExport {
		t.Errorf("patch = %+v", patch)
	}
	if !env.svc.Pending("chat-1") {
		t.Error("a patch should schedule a save")
	}
}

func TestHandler_PreviewError_Unhandled(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/v1/snapshots/chat-1/preview-errors", `{"type":"uncaught_exception","message":"x is undefined"}`)
	if rec.Code != http.StatusUnprocessableEntity || resp.Code != "WS-HEAL-4220" {
		t.Errorf("unhandled preview error = %d %+v", rec.Code, resp)
	}

	rec, _ = env.do(t, http.MethodPost, "/v1/snapshots/chat-1/preview-errors", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty preview error = %d, want 400", rec.Code)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := map[string]int{
		"WS-SNAP-4040": http.StatusNotFound,
		"WS-SNAP-4001": http.StatusBadRequest,
		"WS-ARG-1002":  http.StatusBadRequest,
		"WS-HEAL-4220": http.StatusUnprocessableEntity,
		"WS-SYS-4290":  http.StatusTooManyRequests,
		"WS-SYS-5030":  http.StatusServiceUnavailable,
		"WS-MIRR-5020": http.StatusServiceUnavailable,
		"WS-SYS-5001":  http.StatusInternalServerError,
		"":             http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := errorCodeToHTTPStatus(code); got != want {
			t.Errorf("errorCodeToHTTPStatus(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("req-1", "WS-SNAP-4040", "snapshot not found", "")
	b, _ := json.Marshal(resp)
	if bytes.Contains(b, []byte(`"data"`)) || bytes.Contains(b, []byte(`"details"`)) {
		t.Errorf("empty fields should be omitted: %s", b)
	}
	if resp.RequestID != "req-1" {
		t.Errorf("RequestID = %q", resp.RequestID)
	}
}
