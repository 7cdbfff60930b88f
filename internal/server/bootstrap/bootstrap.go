// Package bootstrap assembles a WorkspaceService and its dependencies
// from a verified configuration. Both wsnapd and the wsnap CLI use it so
// they read the same data directory the same way.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/AgenciaV10/wsnap/internal/autoheal"
	"github.com/AgenciaV10/wsnap/internal/core/service"
	"github.com/AgenciaV10/wsnap/internal/launcher"
	"github.com/AgenciaV10/wsnap/internal/mirror"
	"github.com/AgenciaV10/wsnap/internal/server/config"
	"github.com/AgenciaV10/wsnap/internal/storage"
	"github.com/AgenciaV10/wsnap/internal/storage/snapshot"
	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
	"github.com/AgenciaV10/wsnap/internal/workspace"
)

// launcherStopTimeout bounds how long Close waits for auto-started
// commands to exit.
const launcherStopTimeout = 5 * time.Second

// Runtime holds everything built from one configuration.
type Runtime struct {
	Config   *config.Config
	FS       billy.Filesystem
	Engine   storage.KVEngine
	Store    *snapshot.Store
	Mirror   *mirror.Mirror
	Launcher *launcher.Launcher
	Healer   *autoheal.Healer
	Service  *service.WorkspaceService
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metric.Registry
	fs      billy.Filesystem
	engine  storage.KVEngine
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records component metrics into m. Badger gauges are
// registered on m's Prometheus registry.
func WithMetrics(m *metric.Registry) Option {
	return func(o *options) { o.metrics = m }
}

// WithFilesystem replaces the workspace filesystem. The default is an
// osfs rooted at workspace.dir.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(o *options) { o.fs = fs }
}

// WithEngine uses an already open engine instead of opening one from
// the storage section. Close still closes it.
func WithEngine(e storage.KVEngine) Option {
	return func(o *options) { o.engine = e }
}

// Open builds the runtime described by cfg. cfg must already have passed
// config.Verify. On error every component opened so far is closed.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (rt *Runtime, err error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger

	rt = &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			rt.Close(context.Background())
			rt = nil
		}
	}()

	rt.FS = o.fs
	if rt.FS == nil {
		rt.FS = osfs.New(cfg.Workspace.Dir)
	}

	rt.Engine = o.engine
	if rt.Engine == nil {
		rt.Engine, err = storage.Open(cfg.Storage.KV(), logger.Component(log, "storage"))
		if err != nil {
			return rt, fmt.Errorf("open storage: %w", err)
		}
		if be, ok := rt.Engine.(*storage.BadgerEngine); ok && o.metrics != nil {
			be.RegisterMetrics(o.metrics.Prometheus())
		}
	}

	enc, err := cfg.Snapshot.Encryption()
	if err != nil {
		return rt, fmt.Errorf("snapshot encryption: %w", err)
	}
	rt.Store, err = snapshot.Open(ctx, rt.Engine, enc,
		snapshot.WithLogger(logger.Component(log, "snapshot")),
		snapshot.WithMetrics(o.metrics),
	)
	snapshot.ZeroKey(enc.Key)
	if err != nil {
		return rt, fmt.Errorf("open snapshot store: %w", err)
	}

	walker := workspace.NewWalker(rt.FS,
		workspace.WithExclude(cfg.Workspace.Exclude...),
		workspace.WithMaxFileBytes(cfg.Workspace.MaxFileBytes),
		workspace.WithWalkerLogger(logger.Component(log, "walker")),
	)
	applier := workspace.NewApplier(rt.FS, logger.Component(log, "restore"))

	rt.Healer = autoheal.New(rt.FS,
		autoheal.WithLogger(logger.Component(log, "autoheal")),
		autoheal.WithMetrics(o.metrics),
	)
	svcOpts := []service.ServiceOption{
		service.WithLogger(logger.Component(log, "service")),
		service.WithMetrics(o.metrics),
		service.WithHealer(rt.Healer),
	}

	if cfg.Mirror.Enabled {
		rt.Mirror, err = mirror.Open(ctx, mirror.Config{
			DSN:     cfg.Mirror.DSN,
			Table:   cfg.Mirror.Table,
			Timeout: cfg.Mirror.Timeout,
		}, mirror.WithLogger(logger.Component(log, "mirror")), mirror.WithMetrics(o.metrics))
		if err != nil {
			return rt, fmt.Errorf("open mirror: %w", err)
		}
		if err := rt.Mirror.Migrate(ctx); err != nil {
			return rt, fmt.Errorf("migrate mirror: %w", err)
		}
		svcOpts = append(svcOpts, service.WithMirror(rt.Mirror))
	}

	if cfg.Restore.AutoStart {
		rt.Launcher = launcher.New(cfg.Workspace.Dir,
			launcher.WithLogger(logger.Component(log, "launcher")),
			launcher.WithMetrics(o.metrics),
		)
		svcOpts = append(svcOpts, service.WithLauncher(rt.Launcher))
	}

	rt.Service = service.NewWorkspaceService(service.WorkspaceConfig{
		Root:          cfg.Workspace.Dir,
		OwnerID:       cfg.Mirror.OwnerID,
		DebounceDelay: cfg.Snapshot.Debounce,
		AutoStart:     cfg.Restore.AutoStart,
	}, rt.Store, walker, applier, svcOpts...)

	return rt, nil
}

// Close drops pending scheduled saves, waits for mirror pushes until ctx
// is done, stops auto-started commands and closes the mirror and engine.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Service != nil {
		rt.Service.Stop()
		if err := rt.Service.WaitMirror(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait mirror: %w", err))
		}
	}
	if rt.Launcher != nil {
		rt.Launcher.StopAll(launcherStopTimeout)
	}
	if rt.Mirror != nil {
		if err := rt.Mirror.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mirror: %w", err))
		}
	}
	if rt.Engine != nil {
		if err := rt.Engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
