package command

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv is a data directory and workspace shared by the runs of one test.
type testEnv struct {
	t         *testing.T
	dataDir   string
	workspace string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		t:         t,
		dataDir:   filepath.Join(t.TempDir(), "data"),
		workspace: t.TempDir(),
	}
}

// run executes the CLI with the env's global flags followed by args.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return e.runStdin("", args...)
}

func (e *testEnv) runStdin(stdin string, args ...string) (string, error) {
	e.t.Helper()
	full := append([]string{"--data-dir", e.dataDir, "--workspace", e.workspace}, args...)
	return runApp(e.t, stdin, full...)
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("wsnap %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *testEnv) writeFile(rel, content string) {
	e.t.Helper()
	p := filepath.Join(e.workspace, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		e.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		e.t.Fatalf("write %s: %v", rel, err)
	}
}

func (e *testEnv) readFile(rel string) string {
	e.t.Helper()
	b, err := os.ReadFile(filepath.Join(e.workspace, filepath.FromSlash(rel)))
	if err != nil {
		e.t.Fatalf("read %s: %v", rel, err)
	}
	return string(b)
}

// runApp runs a fresh App with stdout captured and stdin fed from stdin.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"wsnap"}, args...))
	if stderr.Len() > 0 {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}
