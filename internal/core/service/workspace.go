package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AgenciaV10/wsnap/internal/autoheal"
	"github.com/AgenciaV10/wsnap/internal/core/domain"
	"github.com/AgenciaV10/wsnap/internal/launcher"
	"github.com/AgenciaV10/wsnap/internal/mirror"
	"github.com/AgenciaV10/wsnap/internal/scheduler"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
	"github.com/AgenciaV10/wsnap/internal/telemetry/tracer"
	"github.com/AgenciaV10/wsnap/internal/workspace"
)

// Restore sources.
const (
	SourceLocal  = "local"
	SourceMirror = "mirror"
)

// SnapshotRepository persists snapshot records.
type SnapshotRepository interface {
	Put(ctx context.Context, rec *domain.Record) domain.Result[struct{}]
	Get(ctx context.Context, id string) domain.Result[*domain.Record]
	Delete(ctx context.Context, id string) domain.Result[struct{}]
	List(ctx context.Context) domain.Result[[]domain.Summary]
	PutStartCommand(ctx context.Context, id, command string) domain.Result[struct{}]
	GetStartCommand(ctx context.Context, id string) domain.Result[string]
}

// RemoteMirror is the best-effort remote copy of workspaces.
type RemoteMirror interface {
	Upsert(ctx context.Context, id string, files []domain.FileEntry, ownerID, lastStartCommand string) domain.Result[struct{}]
	Fetch(ctx context.Context, id, ownerID string) domain.Result[*mirror.Row]
	Delete(ctx context.Context, id string) domain.Result[struct{}]
}

// TreeWalker captures the workspace files.
type TreeWalker interface {
	Walk(ctx context.Context) []domain.FileEntry
}

// RestoreApplier writes a record onto the workspace.
type RestoreApplier interface {
	Apply(ctx context.Context, rec *domain.Record, targetRoot string) workspace.RestoreResult
}

// CommandLauncher starts the recorded launch command.
type CommandLauncher interface {
	Start(command string) (*launcher.Process, error)
}

// Healer patches workspace files after preview errors.
type Healer interface {
	Heal(ctx context.Context, e autoheal.PreviewError) (*autoheal.Patch, error)
}

// WorkspaceConfig configures the WorkspaceService.
type WorkspaceConfig struct {
	// Root is recorded in every record as the capture root.
	Root string

	// OwnerID scopes mirror rows.
	OwnerID string

	// DebounceDelay is the quiet period of scheduled saves.
	DebounceDelay time.Duration

	// AutoStart runs the launch command after Boot restores a snapshot.
	AutoStart bool
}

// SaveOptions modifies a single save.
type SaveOptions struct {
	// LastStartCommand is recorded in the snapshot. When empty the
	// session's stored start command is used.
	LastStartCommand string
}

// BootResult reports what Boot did.
type BootResult struct {
	workspace.RestoreResult
	AutoStarted bool `json:"auto_started"`
	PID         int  `json:"pid,omitempty"`
}

// WorkspaceService handles workspace snapshot operations.
type WorkspaceService struct {
	cfg       WorkspaceConfig
	store     SnapshotRepository
	walker    TreeWalker
	applier   RestoreApplier
	mirror    RemoteMirror
	launcher  CommandLauncher
	healer    Healer
	debouncer *scheduler.Debouncer

	locks    *keyedLocks
	pushes   *keyedGroups
	deletes  *generations
	mirrorWG sync.WaitGroup
	logger   *slog.Logger
	metrics  *metric.Registry
}

// ServiceOption configures a WorkspaceService.
type ServiceOption func(*WorkspaceService)

// WithMirror enables the remote mirror.
func WithMirror(m RemoteMirror) ServiceOption {
	return func(s *WorkspaceService) { s.mirror = m }
}

// WithLauncher enables auto-start.
func WithLauncher(l CommandLauncher) ServiceOption {
	return func(s *WorkspaceService) { s.launcher = l }
}

// WithHealer enables preview error auto-heal.
func WithHealer(h Healer) ServiceOption {
	return func(s *WorkspaceService) { s.healer = h }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *WorkspaceService) { s.logger = l }
}

// WithMetrics records save and restore metrics.
func WithMetrics(m *metric.Registry) ServiceOption {
	return func(s *WorkspaceService) { s.metrics = m }
}

// NewWorkspaceService creates a new WorkspaceService.
func NewWorkspaceService(cfg WorkspaceConfig, store SnapshotRepository, walker TreeWalker, applier RestoreApplier, opts ...ServiceOption) *WorkspaceService {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = scheduler.DefaultDelay
	}
	s := &WorkspaceService{
		cfg:     cfg,
		store:   store,
		walker:  walker,
		applier: applier,
		locks:   newKeyedLocks(),
		pushes:  newKeyedGroups(),
		deletes: newGenerations(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debouncer = scheduler.New(
		scheduler.WithLogger(s.logger),
		scheduler.WithMetrics(s.metrics),
	)
	return s
}

// MirrorEnabled reports whether a remote mirror is configured.
func (s *WorkspaceService) MirrorEnabled() bool {
	return s.mirror != nil
}

// ============================================================================
// Save
// ============================================================================

// Save captures the workspace and stores it as the snapshot of id,
// replacing any previous one. When the mirror is enabled the record is
// pushed in the background. If ctx ends during the walk nothing is stored.
func (s *WorkspaceService) Save(ctx context.Context, id string, opts SaveOptions) (*domain.Record, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}
	return s.save(ctx, id, opts, nil)
}

// save runs under the session lock. With gen set, the save is skipped
// when id was deleted after gen was taken.
func (s *WorkspaceService) save(ctx context.Context, id string, opts SaveOptions, gen *uint64) (rec *domain.Record, err error) {
	ctx, span := tracer.StartSpan(ctx, "workspace.save", attribute.String("session_id", id))
	defer func() { tracer.EndSpan(span, err) }()

	unlock := s.locks.lock(id)
	defer unlock()

	if gen != nil && s.deletes.current(id) != *gen {
		s.logger.Debug("skipping save of deleted session", "session_id", id)
		return nil, nil
	}

	start := time.Now()
	files := s.walker.Walk(ctx)
	if err := ctx.Err(); err != nil {
		s.metrics.RecordSave(domain.StatusFailed.String(), time.Since(start).Seconds(), 0, 0)
		s.logger.Warn("save abandoned", "session_id", id, "files", len(files), "error", err)
		return nil, err
	}

	command := opts.LastStartCommand
	if command == "" {
		if res := s.store.GetStartCommand(ctx, id); res.IsOK() {
			command = res.Value
		}
	}

	rec = domain.NewRecord(id, s.cfg.Root, files, command)
	res := s.store.Put(ctx, rec)
	s.metrics.RecordSave(res.Status.String(), time.Since(start).Seconds(), rec.FileCount(), rec.TotalBytes())
	if !res.IsOK() {
		return nil, res.Err
	}

	span.SetAttributes(
		attribute.Int("files", rec.FileCount()),
		attribute.Int64("bytes", rec.TotalBytes()),
	)
	s.logger.Info("workspace snapshot saved",
		"session_id", id,
		"files", rec.FileCount(),
		"bytes", rec.TotalBytes(),
		"duration", time.Since(start))

	s.pushMirror(ctx, rec)
	return rec, nil
}

// Schedule debounces a Save of id. Triggers arriving within the debounce
// delay collapse into one save. It reports false once the service is
// stopped.
func (s *WorkspaceService) Schedule(id string, opts SaveOptions) bool {
	if err := domain.ValidateSessionID(id); err != nil {
		s.logger.Warn("not scheduling save", "session_id", id, "error", err)
		return false
	}
	gen := s.deletes.current(id)
	return s.debouncer.Schedule(id, func() {
		if _, err := s.save(context.Background(), id, opts, &gen); err != nil {
			s.logger.Warn("scheduled save failed", "session_id", id, "error", err)
		}
	}, s.cfg.DebounceDelay)
}

// Pending reports whether a scheduled save of id is waiting.
func (s *WorkspaceService) Pending(id string) bool {
	return s.debouncer.Pending(id)
}

func (s *WorkspaceService) pushMirror(ctx context.Context, rec *domain.Record) {
	if s.mirror == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	done := s.pushes.add(rec.SessionID)
	s.mirrorWG.Add(1)
	go func() {
		defer s.mirrorWG.Done()
		defer done()
		s.mirror.Upsert(ctx, rec.SessionID, rec.Files, s.cfg.OwnerID, rec.LastStartCommand)
	}()
}

// WaitMirror blocks until background mirror pushes finish or ctx ends.
func (s *WorkspaceService) WaitMirror(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mirrorWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ============================================================================
// Restore
// ============================================================================

// Restore writes the snapshot of id onto the workspace. The local store
// is tried first; when it has nothing and the mirror is enabled the
// remote copy is used and cached locally. The launch command is resolved
// from the stored start command, then from the record.
func (s *WorkspaceService) Restore(ctx context.Context, id string) (result *workspace.RestoreResult, err error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}

	ctx, span := tracer.StartSpan(ctx, "workspace.restore", attribute.String("session_id", id))
	defer func() { tracer.EndSpan(span, err) }()

	unlock := s.locks.lock(id)
	defer unlock()

	rec, source := s.load(ctx, id)
	if rec == nil {
		s.metrics.RecordRestore("none", domain.StatusNotFound.String(), 0, 0)
		return &workspace.RestoreResult{}, domain.ErrSnapshotNotFound.WithDetails(id)
	}

	res := s.applier.Apply(ctx, rec, "")
	res.Source = source
	res.LastStartCommand = s.resolveStartCommand(ctx, id, rec)

	outcome := domain.StatusOK.String()
	if !res.Restored {
		outcome = domain.StatusFailed.String()
	}
	s.metrics.RecordRestore(source, outcome, res.Written, res.Failed)
	span.SetAttributes(
		attribute.String("source", source),
		attribute.Int("written", res.Written),
		attribute.Int("failed", res.Failed),
	)
	return &res, nil
}

// load returns the record for id and where it came from, or nil.
func (s *WorkspaceService) load(ctx context.Context, id string) (*domain.Record, string) {
	local := s.store.Get(ctx, id)
	if local.IsOK() {
		return local.Value, SourceLocal
	}
	if local.IsFailed() {
		s.logger.Warn("local snapshot unavailable", "session_id", id, "error", local.Err)
	}
	if s.mirror == nil {
		return nil, ""
	}

	remote := s.mirror.Fetch(ctx, id, s.cfg.OwnerID)
	if !remote.IsOK() {
		return nil, ""
	}
	rec := remote.Value.Record()
	if put := s.store.Put(ctx, rec); put.IsOK() {
		s.logger.Info("cached mirrored snapshot locally", "session_id", id, "files", rec.FileCount())
	}
	return rec, SourceMirror
}

func (s *WorkspaceService) resolveStartCommand(ctx context.Context, id string, rec *domain.Record) string {
	if res := s.store.GetStartCommand(ctx, id); res.IsOK() && res.Value != "" {
		return res.Value
	}
	if rec != nil {
		return rec.LastStartCommand
	}
	return ""
}

// Boot restores id and, when auto-start is enabled, launches the
// resolved start command. A missing snapshot is not an error.
func (s *WorkspaceService) Boot(ctx context.Context, id string) (*BootResult, error) {
	res, err := s.Restore(ctx, id)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		s.logger.Info("no snapshot to restore", "session_id", id)
		return &BootResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := &BootResult{RestoreResult: *res}
	if !s.cfg.AutoStart || s.launcher == nil || res.LastStartCommand == "" {
		return out, nil
	}
	p, err := s.launcher.Start(res.LastStartCommand)
	if err != nil {
		s.logger.Warn("failed to auto-start workspace", "session_id", id, "error", err)
		return out, nil
	}
	out.AutoStarted = true
	if p != nil {
		out.PID = p.PID
	}
	return out, nil
}

// ============================================================================
// Queries and maintenance
// ============================================================================

// Get returns the stored snapshot of id.
func (s *WorkspaceService) Get(ctx context.Context, id string) (*domain.Record, error) {
	res := s.store.Get(ctx, id)
	switch {
	case res.IsOK():
		return res.Value, nil
	case res.IsNotFound():
		return nil, domain.ErrSnapshotNotFound.WithDetails(id)
	default:
		return nil, res.Err
	}
}

// List summarises every stored snapshot.
func (s *WorkspaceService) List(ctx context.Context) ([]domain.Summary, error) {
	res := s.store.List(ctx)
	if !res.IsOK() {
		return nil, res.Err
	}
	return res.Value, nil
}

// Delete removes the snapshot and start command of id, cancels a pending
// save and, when enabled, deletes the mirrored row once in-flight pushes
// of id have finished. A scheduled save that already left the timer is
// skipped. Deleting a missing snapshot succeeds.
func (s *WorkspaceService) Delete(ctx context.Context, id string) error {
	if err := domain.ValidateSessionID(id); err != nil {
		return err
	}
	s.deletes.bump(id)
	s.debouncer.Cancel(id)

	unlock := s.locks.lock(id)
	defer unlock()

	if res := s.store.Delete(ctx, id); !res.IsOK() {
		return res.Err
	}
	if res := s.store.PutStartCommand(ctx, id, ""); !res.IsOK() {
		return res.Err
	}
	if s.mirror != nil {
		if err := s.pushes.wait(ctx, id); err != nil {
			s.logger.Warn("mirror push still running at delete", "session_id", id, "error", err)
		}
		s.mirror.Delete(ctx, id)
	}
	s.logger.Info("workspace snapshot deleted", "session_id", id)
	return nil
}

// SetStartCommand records the launch command of id. An empty command
// clears it.
func (s *WorkspaceService) SetStartCommand(ctx context.Context, id, command string) error {
	if res := s.store.PutStartCommand(ctx, id, command); !res.IsOK() {
		return res.Err
	}
	return nil
}

// StartCommand returns the launch command that a restore of id would use,
// or "" if none is known.
func (s *WorkspaceService) StartCommand(ctx context.Context, id string) (string, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return "", err
	}
	res := s.store.GetStartCommand(ctx, id)
	if res.IsFailed() {
		return "", res.Err
	}
	if res.IsOK() && res.Value != "" {
		return res.Value, nil
	}
	rec := s.store.Get(ctx, id)
	if rec.IsFailed() {
		return "", rec.Err
	}
	if rec.IsOK() {
		return rec.Value.LastStartCommand, nil
	}
	return "", nil
}

// Heal runs auto-heal for a preview error raised in session id and
// schedules a save when a file was patched.
func (s *WorkspaceService) Heal(ctx context.Context, id string, e autoheal.PreviewError) (*autoheal.Patch, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}
	if s.healer == nil {
		return nil, domain.ErrHealNotApplicable.WithDetails("auto-heal disabled")
	}
	patch, err := s.healer.Heal(ctx, e)
	if err != nil {
		return nil, err
	}
	s.Schedule(id, SaveOptions{})
	return patch, nil
}

// Stop cancels pending scheduled saves without running them and returns
// how many were dropped.
func (s *WorkspaceService) Stop() int {
	return s.debouncer.Stop()
}
