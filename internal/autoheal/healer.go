package autoheal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/AgenciaV10/wsnap/internal/core/domain"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
)

// Preview error types that trigger healing.
const (
	TypeUncaughtException  = "PREVIEW_UNCAUGHT_EXCEPTION"
	TypeUnhandledRejection = "PREVIEW_UNHANDLED_REJECTION"
)

// PreviewError is an error reported by the running preview.
type PreviewError struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Stack    string `json:"stack"`
	Pathname string `json:"pathname,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// Patch describes a file rewritten by a rule.
type Patch struct {
	Rule string `json:"rule"`
	Path string `json:"path"`
}

// Healer applies rules to workspace files.
type Healer struct {
	fs      billy.Filesystem
	logger  *slog.Logger
	metrics *metric.Registry
}

// Option configures a Healer.
type Option func(*Healer)

// WithLogger sets the healer logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Healer) { h.logger = l }
}

// WithMetrics counts applied patches.
func WithMetrics(m *metric.Registry) Option {
	return func(h *Healer) { h.metrics = m }
}

// New creates a healer editing files in fs.
func New(fs billy.Filesystem, opts ...Option) *Healer {
	h := &Healer{fs: fs, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Heal patches the module named in e's stack trace. It returns
// domain.ErrHealNotApplicable when no rule changes anything.
func (h *Healer) Heal(ctx context.Context, e PreviewError) (*Patch, error) {
	if e.Type != TypeUncaughtException && e.Type != TypeUnhandledRejection {
		return nil, domain.ErrHealNotApplicable.WithDetails("preview error type " + e.Type)
	}
	modulePath, ok := sourcePath(e.Stack)
	if !ok {
		return nil, domain.ErrHealNotApplicable.WithDetails("no source module in stack")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file := strings.TrimPrefix(modulePath, "/")
	content, err := h.read(file)
	if err != nil {
		h.logger.Warn("auto-heal read failed", "path", file, "error", err)
		return nil, fmt.Errorf("autoheal: read %s: %w", file, err)
	}

	rule, patched, ok := apply(e, modulePath, content)
	if !ok {
		return nil, domain.ErrHealNotApplicable.WithDetails(file)
	}

	if err := util.WriteFile(h.fs, file, []byte(patched), 0o644); err != nil {
		h.logger.Warn("auto-heal write failed", "path", file, "rule", rule, "error", err)
		return nil, fmt.Errorf("autoheal: write %s: %w", file, err)
	}

	h.metrics.RecordHealPatch(rule)
	h.logger.Info("auto-heal patch applied", "path", file, "rule", rule)
	return &Patch{Rule: rule, Path: file}, nil
}

func apply(e PreviewError, modulePath, content string) (rule, patched string, ok bool) {
	if out, ok := fixAppDefaultExport(e.Message, modulePath, content); ok {
		return RuleAppDefaultExport, out, true
	}
	if out, ok := fixLucideIcon(e.Message, e.Stack, content); ok {
		return RuleLucideIcon, out, true
	}
	if out, ok := fixNamedExport(e.Message, content); ok {
		return RuleNamedExport, out, true
	}
	return "", "", false
}

func (h *Healer) read(name string) (string, error) {
	f, err := h.fs.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
