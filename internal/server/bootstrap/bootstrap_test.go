package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/AgenciaV10/wsnap/internal/core/domain"
	"github.com/AgenciaV10/wsnap/internal/core/service"
	"github.com/AgenciaV10/wsnap/internal/server/config"
	"github.com/AgenciaV10/wsnap/internal/storage"
	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace.Dir = "/workspace"
	cfg.Storage.Engine = "memory"
	cfg.Storage.DataDir = ""
	return cfg
}

func TestOpen_SaveRestore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Snapshot.Passphrase = "correct horse battery"

	fs := memfs.New()
	if err := util.WriteFile(fs, "src/App.tsx", []byte("export default App"), 0o644); err != nil {
		t.Fatal(err)
	}

	rt, err := Open(ctx, cfg, WithLogger(logger.Discard()), WithFilesystem(fs), WithMetrics(metric.NewRegistry()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close(ctx)

	if !rt.Store.Encrypted() {
		t.Error("store should be encrypted with a passphrase")
	}
	if rt.Mirror != nil || rt.Launcher != nil {
		t.Error("mirror and launcher should be disabled by default")
	}

	rec, err := rt.Service.Save(ctx, "chat-1", service.SaveOptions{LastStartCommand: "npm run dev"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.Root != "/workspace" || rec.FileCount() != 1 {
		t.Errorf("record = %+v", rec)
	}

	if err := fs.Remove("src/App.tsx"); err != nil {
		t.Fatal(err)
	}
	res, err := rt.Service.Restore(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !res.Restored || res.Written != 1 || res.LastStartCommand != "npm run dev" {
		t.Errorf("Restore = %+v", res)
	}
}

func TestOpen_Mirror(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Mirror.Enabled = true
	cfg.Mirror.DSN = "sqlite:file:bootstrap_mirror?mode=memory&cache=shared&_pragma=busy_timeout(5000)"
	cfg.Mirror.OwnerID = "user-1"
	cfg.Mirror.Timeout = time.Second

	fs := memfs.New()
	if err := util.WriteFile(fs, "index.html", []byte("<html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	rt, err := Open(ctx, cfg, WithLogger(logger.Discard()), WithFilesystem(fs))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close(ctx)

	if !rt.Service.MirrorEnabled() {
		t.Fatal("mirror should be enabled")
	}
	if _, err := rt.Service.Save(ctx, "chat-1", service.SaveOptions{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := rt.Service.WaitMirror(ctx); err != nil {
		t.Fatalf("WaitMirror: %v", err)
	}

	// Drop the local copy so restore has to use the mirror.
	if res := rt.Store.Delete(ctx, "chat-1"); !res.IsOK() {
		t.Fatalf("Delete: %v", res.Err)
	}
	res, err := rt.Service.Restore(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Source != service.SourceMirror || res.Written != 1 {
		t.Errorf("Restore = %+v", res)
	}
}

func TestOpen_InvalidEncryptionKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot.EncryptionKey = "not a key!"

	engine := storage.NewMemoryEngine()
	_, err := Open(context.Background(), cfg, WithLogger(logger.Discard()), WithFilesystem(memfs.New()), WithEngine(engine))
	if err == nil || !strings.Contains(err.Error(), "snapshot encryption") {
		t.Fatalf("Open = %v, want encryption error", err)
	}

	// A failed Open closes what it opened.
	if _, err := engine.Get(context.Background(), []byte("k")); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("engine Get after failed Open = %v, want ErrClosed", err)
	}
}

func TestOpen_MirrorUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mirror.Enabled = true
	cfg.Mirror.DSN = "mysql://nope"

	_, err := Open(context.Background(), cfg, WithLogger(logger.Discard()), WithFilesystem(memfs.New()))
	if err == nil || !strings.Contains(err.Error(), "open mirror") {
		t.Fatalf("Open = %v, want mirror error", err)
	}
}

func TestRuntime_CloseNotFound(t *testing.T) {
	ctx := context.Background()
	rt, err := Open(ctx, testConfig(t), WithLogger(logger.Discard()), WithFilesystem(memfs.New()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := rt.Service.Get(ctx, "missing"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("Get missing = %v", err)
	}
	if err := rt.Close(ctx); err != nil {
		t.Errorf("Close: %v", err)
	}
}
