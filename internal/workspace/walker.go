package workspace

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"unicode/utf8"

	"github.com/go-git/go-billy/v5"

	"github.com/AgenciaV10/wsnap/internal/core/domain"
)

// DefaultExclude lists directory names that are never captured.
var DefaultExclude = []string{"node_modules", ".git", ".history", "dist", "build", ".next"}

// Walker collects text files from a filesystem.
type Walker struct {
	fs           billy.Filesystem
	exclude      map[string]struct{}
	maxFileBytes int64
	logger       *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithExclude replaces the excluded directory names.
func WithExclude(names ...string) WalkerOption {
	return func(w *Walker) {
		w.exclude = excludeSet(names)
	}
}

// WithMaxFileBytes skips files larger than n bytes. Zero means no limit.
func WithMaxFileBytes(n int64) WalkerOption {
	return func(w *Walker) {
		w.maxFileBytes = n
	}
}

// WithWalkerLogger sets the walker logger.
func WithWalkerLogger(l *slog.Logger) WalkerOption {
	return func(w *Walker) {
		w.logger = l
	}
}

// NewWalker creates a walker over fs.
func NewWalker(fs billy.Filesystem, opts ...WalkerOption) *Walker {
	w := &Walker{
		fs:      fs,
		exclude: excludeSet(DefaultExclude),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Excluded reports whether a directory with this base name is skipped.
func (w *Walker) Excluded(name string) bool {
	_, ok := w.exclude[name]
	return ok
}

// Walk returns every readable UTF-8 file below the filesystem root, with
// posix paths relative to it, in enumeration order.
//
// Unreadable directories are dropped with their subtree and unreadable or
// binary files are skipped; Walk never fails. When ctx is cancelled the
// entries gathered so far are returned.
func (w *Walker) Walk(ctx context.Context) []domain.FileEntry {
	files := make([]domain.FileEntry, 0)
	var skipped int
	w.walkDir(ctx, "", &files, &skipped)
	w.logger.Debug("workspace walked",
		"files", len(files),
		"skipped", skipped)
	return files
}

func (w *Walker) walkDir(ctx context.Context, dir string, files *[]domain.FileEntry, skipped *int) {
	if ctx.Err() != nil {
		return
	}

	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		w.logger.Debug("skipping unreadable directory", "dir", displayPath(dir), "error", err)
		return
	}

	for _, info := range entries {
		if ctx.Err() != nil {
			return
		}
		p := path.Join(dir, info.Name())

		if info.IsDir() {
			if w.Excluded(info.Name()) {
				continue
			}
			w.walkDir(ctx, p, files, skipped)
			continue
		}
		if !info.Mode().IsRegular() && info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if w.maxFileBytes > 0 && info.Size() > w.maxFileBytes {
			*skipped++
			continue
		}

		content, ok := w.readText(p)
		if !ok {
			*skipped++
			continue
		}
		*files = append(*files, domain.FileEntry{Path: p, Content: content})
	}
}

// readText reads p and reports whether it holds UTF-8 text.
func (w *Walker) readText(p string) (string, bool) {
	f, err := w.fs.Open(p)
	if err != nil {
		w.logger.Debug("skipping unreadable file", "path", p, "error", err)
		return "", false
	}
	defer f.Close()

	var r io.Reader = f
	if w.maxFileBytes > 0 {
		r = io.LimitReader(f, w.maxFileBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		w.logger.Debug("skipping unreadable file", "path", p, "error", err)
		return "", false
	}
	if w.maxFileBytes > 0 && int64(len(data)) > w.maxFileBytes {
		return "", false
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

func excludeSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}
