package workspace

import (
	"context"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
)

func newTestFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for p, content := range files {
		if err := util.WriteFile(fs, p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", p, err)
		}
	}
	return fs
}

func walkPaths(t *testing.T, w *Walker) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, f := range w.Walk(context.Background()) {
		if _, dup := out[f.Path]; dup {
			t.Errorf("duplicate path %s", f.Path)
		}
		out[f.Path] = f.Content
	}
	return out
}

func TestWalker_Walk(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"package.json":          `{"name":"demo"}`,
		"src/App.tsx":           "export default App;",
		"src/lib/util.ts":       "export const x = 1;",
		"node_modules/react/ix": "ignored",
		".git/HEAD":             "ref: refs/heads/main",
		"dist/bundle.js":        "ignored",
		"src/dist/kept.txt":     "excluded at any depth",
		".next/cache":           "ignored",
		"build/out":             "ignored",
		".history/a":            "ignored",
		"distribution/keep.txt": "not an exact match",
	})

	got := walkPaths(t, NewWalker(fs, WithWalkerLogger(logger.Discard())))
	want := map[string]string{
		"package.json":          `{"name":"demo"}`,
		"src/App.tsx":           "export default App;",
		"src/lib/util.ts":       "export const x = 1;",
		"distribution/keep.txt": "not an exact match",
	}

	if len(got) != len(want) {
		t.Fatalf("Walk returned %d files, want %d: %v", len(got), len(want), got)
	}
	for p, c := range want {
		if got[p] != c {
			t.Errorf("%s = %q, want %q", p, got[p], c)
		}
	}
}

func TestWalker_SkipsBinary(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"logo.png":  "\x89PNG\r\n\x1a\n\x00\x00",
		"bad.txt":   "\xff\xfe\xfd",
		"ok.txt":    "héllo",
		"empty.txt": "",
	})

	got := walkPaths(t, NewWalker(fs, WithWalkerLogger(logger.Discard())))
	if _, ok := got["logo.png"]; ok {
		t.Error("NUL-bearing file should be skipped")
	}
	if _, ok := got["bad.txt"]; ok {
		t.Error("invalid UTF-8 file should be skipped")
	}
	if got["ok.txt"] != "héllo" {
		t.Errorf("ok.txt = %q", got["ok.txt"])
	}
	if _, ok := got["empty.txt"]; !ok {
		t.Error("empty file should be captured")
	}
}

func TestWalker_MaxFileBytes(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"small.txt": "abc",
		"large.txt": strings.Repeat("x", 100),
	})

	got := walkPaths(t, NewWalker(fs, WithMaxFileBytes(10), WithWalkerLogger(logger.Discard())))
	if _, ok := got["large.txt"]; ok {
		t.Error("oversized file should be skipped")
	}
	if got["small.txt"] != "abc" {
		t.Errorf("small.txt = %q", got["small.txt"])
	}
}

func TestWalker_CustomExclude(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"vendor/lib.go":        "package lib",
		"node_modules/x/ix.js": "now included",
		"main.go":              "package main",
	})

	got := walkPaths(t, NewWalker(fs, WithExclude("vendor"), WithWalkerLogger(logger.Discard())))
	if _, ok := got["vendor/lib.go"]; ok {
		t.Error("vendor should be excluded")
	}
	if _, ok := got["node_modules/x/ix.js"]; !ok {
		t.Error("custom exclusion list should replace the default")
	}
}

func TestWalker_EmptyFilesystem(t *testing.T) {
	w := NewWalker(memfs.New(), WithWalkerLogger(logger.Discard()))
	files := w.Walk(context.Background())
	if files == nil || len(files) != 0 {
		t.Errorf("Walk on empty fs = %v, want empty non-nil slice", files)
	}
}

func TestWalker_Cancelled(t *testing.T) {
	fs := newTestFS(t, map[string]string{"a.txt": "a", "b/c.txt": "c"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := NewWalker(fs, WithWalkerLogger(logger.Discard())).Walk(ctx)
	if len(files) != 0 {
		t.Errorf("cancelled walk returned %d files", len(files))
	}
}

func TestWalker_Excluded(t *testing.T) {
	w := NewWalker(memfs.New())
	for _, name := range DefaultExclude {
		if !w.Excluded(name) {
			t.Errorf("Excluded(%q) = false", name)
		}
	}
	if w.Excluded("src") {
		t.Error("Excluded(src) = true")
	}
}
