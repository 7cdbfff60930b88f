package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveShowList(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile("src/App.tsx", "export default function App() {}")
	env.writeFile("index.html", "<html></html>")
	env.writeFile("node_modules/react/index.js", "skipped")

	out := env.mustRun("-o", "json", "save", "-s", "npm run dev", "chat-1")
	var saved recordView
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("decode save output: %v\n%s", err, out)
	}
	if saved.SessionID != "chat-1" || saved.FileCount != 2 || saved.LastStartCommand != "npm run dev" {
		t.Errorf("save = %+v", saved)
	}
	if saved.CreatedAt == 0 || saved.Size == 0 {
		t.Errorf("save missing timestamp or size: %+v", saved)
	}

	out = env.mustRun("list")
	if !strings.Contains(out, "SESSION_ID") || !strings.Contains(out, "chat-1") {
		t.Errorf("list table:\n%s", out)
	}
	if !strings.Contains(out, "Total: 1 snapshots") {
		t.Errorf("list total missing:\n%s", out)
	}

	out = env.mustRun("-w", "list")
	if !strings.Contains(out, "LAST_START_COMMAND") || !strings.Contains(out, "npm run dev") {
		t.Errorf("wide list:\n%s", out)
	}

	out = env.mustRun("show", "--files", "chat-1")
	for _, want := range []string{"session_id", "chat-1", "PATH", "src/App.tsx", "index.html"} {
		if !strings.Contains(out, want) {
			t.Errorf("show --files missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "node_modules") {
		t.Errorf("excluded dir captured:\n%s", out)
	}

	out = env.mustRun("-o", "yaml", "show", "-f", "chat-1")
	if !strings.Contains(out, "content:") || !strings.Contains(out, "export default function App() {}") {
		t.Errorf("yaml show should include contents:\n%s", out)
	}
}

func TestRestore(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile("src/lib/util.ts", "export const x = 1")
	env.mustRun("save", "-s", "pnpm dev", "chat-1")

	if err := os.RemoveAll(filepath.Join(env.workspace, "src")); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun("-o", "json", "restore", "chat-1")
	var res struct {
		Restored         bool   `json:"restored"`
		Written          int    `json:"written"`
		Source           string `json:"source"`
		LastStartCommand string `json:"last_start_command"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode restore output: %v\n%s", err, out)
	}
	if !res.Restored || res.Written != 1 || res.Source != "local" || res.LastStartCommand != "pnpm dev" {
		t.Errorf("restore = %+v", res)
	}
	if got := env.readFile("src/lib/util.ts"); got != "export const x = 1" {
		t.Errorf("restored content = %q", got)
	}
}

func TestRestore_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("restore", "missing")
	if err == nil || !strings.Contains(err.Error(), "WS-SNAP-4040") {
		t.Errorf("restore missing = %v, want WS-SNAP-4040", err)
	}
}

func TestSessionArgRequired(t *testing.T) {
	env := newTestEnv(t)
	for _, cmd := range []string{"save", "restore", "show", "delete"} {
		if _, err := env.run(cmd); err == nil || !strings.Contains(err.Error(), "session id is required") {
			t.Errorf("%s without id = %v", cmd, err)
		}
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile("a.txt", "a")
	env.mustRun("save", "chat-1")

	out, err := env.runStdin("n\n", "delete", "chat-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Cancelled.") {
		t.Errorf("declined delete output = %q", out)
	}
	env.mustRun("show", "chat-1")

	out, err = env.runStdin("yes\n", "delete", "chat-1")
	if err != nil || !strings.Contains(out, "Snapshot chat-1 deleted.") {
		t.Fatalf("confirmed delete = %q, %v", out, err)
	}
	if _, err := env.run("show", "chat-1"); err == nil {
		t.Error("show after delete should fail")
	}

	// Deleting a missing snapshot succeeds.
	env.mustRun("delete", "--force", "chat-1")
}

func TestStartCommand(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("start-command", "get", "chat-1"); err == nil {
		t.Error("get without a command should fail in table output")
	}

	env.mustRun("start-command", "set", "chat-1", "npm", "run", "dev")
	if out := env.mustRun("start-command", "get", "chat-1"); out != "npm run dev\n" {
		t.Errorf("get = %q", out)
	}

	out := env.mustRun("-o", "json", "start-command", "get", "chat-1")
	var v startCommandView
	if err := json.Unmarshal([]byte(out), &v); err != nil || v.Command != "npm run dev" {
		t.Errorf("get json = %q, %v", out, err)
	}

	if _, err := env.run("start-command", "set", "chat-1"); err == nil {
		t.Error("set without command should fail")
	}

	env.mustRun("start-command", "clear", "chat-1")
	out = env.mustRun("-o", "json", "start-command", "get", "chat-1")
	if err := json.Unmarshal([]byte(out), &v); err != nil || v.Command != "" {
		t.Errorf("get after clear = %q, %v", out, err)
	}
}
