package workspace

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/AgenciaV10/wsnap/internal/core/domain"
)

// RestoreResult reports what a restore wrote.
type RestoreResult struct {
	Restored         bool   `json:"restored"`
	LastStartCommand string `json:"last_start_command,omitempty"`
	Written          int    `json:"written"`
	Failed           int    `json:"failed"`
	Source           string `json:"source,omitempty"`
}

// Applier writes snapshot records onto a filesystem.
type Applier struct {
	fs     billy.Filesystem
	logger *slog.Logger
}

// NewApplier creates an applier writing to fs.
func NewApplier(fs billy.Filesystem, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{fs: fs, logger: logger}
}

// Apply writes every entry of rec below targetRoot, overwriting existing
// files. Entry paths are re-anchored from rec.Root. Files not in the
// record are left alone.
//
// A failed write skips that file only. The result is not Restored when
// nothing could be written and at least one write failed.
func (a *Applier) Apply(ctx context.Context, rec *domain.Record, targetRoot string) RestoreResult {
	if rec == nil {
		return RestoreResult{}
	}

	var res RestoreResult
	for _, f := range rec.Files {
		if ctx.Err() != nil {
			res.Failed += len(rec.Files) - res.Written - res.Failed
			break
		}

		rel := rec.RelativePath(f.Path)
		if !safeRelative(rel) {
			a.logger.Warn("skipping snapshot entry outside workspace", "path", f.Path)
			res.Failed++
			continue
		}

		target := rel
		if targetRoot != "" {
			target = path.Join(targetRoot, rel)
		}
		if dir := path.Dir(target); dir != "." {
			// A failure here surfaces as a write error below.
			_ = a.fs.MkdirAll(dir, 0o755)
		}

		if err := util.WriteFile(a.fs, target, []byte(f.Content), 0o644); err != nil {
			a.logger.Debug("restore write failed", "path", target, "error", err)
			res.Failed++
			continue
		}
		res.Written++
	}

	res.Restored = res.Written > 0 || res.Failed == 0
	res.LastStartCommand = rec.LastStartCommand

	a.logger.Info("workspace restored",
		"session_id", rec.SessionID,
		"written", res.Written,
		"failed", res.Failed)
	return res
}

func safeRelative(rel string) bool {
	if rel == "" || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, "../")
}
