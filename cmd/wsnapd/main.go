// Command wsnapd keeps one workspace directory snapshotted.
//
// At boot it restores the configured session (optionally starting its
// launch command), then watches the tree and saves the session after each
// burst of changes. An HTTP admin API exposes health, metrics, snapshot
// operations and preview-error auto-heal.
//
// Usage:
//
//	wsnapd [flags]
//	wsnapd --config /etc/wsnap/wsnap.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AgenciaV10/wsnap/internal/core/service"
	"github.com/AgenciaV10/wsnap/internal/infra/buildinfo"
	"github.com/AgenciaV10/wsnap/internal/infra/certwatch"
	"github.com/AgenciaV10/wsnap/internal/infra/shutdown"
	"github.com/AgenciaV10/wsnap/internal/server/bootstrap"
	"github.com/AgenciaV10/wsnap/internal/server/config"
	"github.com/AgenciaV10/wsnap/internal/server/httpserver"
	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
	"github.com/AgenciaV10/wsnap/internal/telemetry/tracer"
	"github.com/AgenciaV10/wsnap/internal/workspace"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", os.Getenv("WSNAP_CONFIG"), "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("wsnapd " + buildinfo.String())
		return nil
	}

	cfg, err := config.Load(*configFile, nil)
	if err != nil {
		return err
	}

	log := logger.NewSlog(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting wsnapd",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx := context.Background()
	handler := shutdown.NewHandler(shutdownTimeout, logger.Component(log, "shutdown"))

	if cfg.Trace.Enabled {
		shutdownTracer, err := tracer.Init(ctx, tracer.Config{
			ServiceName:    "wsnapd",
			ServiceVersion: info.Version,
			Stdout:         cfg.Trace.Stdout,
		})
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		handler.OnShutdown("tracer", shutdownTracer)
	}

	metrics := metric.NewRegistry()

	rt, err := bootstrap.Open(ctx, cfg, bootstrap.WithLogger(log), bootstrap.WithMetrics(metrics))
	if err != nil {
		handler.Shutdown()
		return err
	}
	handler.OnShutdown("runtime", rt.Close)

	sessionID := cfg.Workspace.SessionID
	if cfg.Restore.OnBoot {
		res, err := rt.Service.Boot(ctx, sessionID)
		if err != nil {
			log.Error("restore on boot failed", "session_id", sessionID, "error", err)
		} else {
			log.Info("restore on boot finished",
				"session_id", sessionID,
				"restored", res.Restored,
				"source", res.Source,
				"written", res.Written,
				"failed", res.Failed,
				"auto_started", res.AutoStarted)
		}
	}

	srv, err := newHTTPServer(cfg, rt, metrics, log)
	if err != nil {
		handler.Shutdown()
		return err
	}
	handler.OnShutdown("http", srv.Shutdown)
	handler.OnShutdown("scheduler", func(context.Context) error {
		if n := rt.Service.Stop(); n > 0 {
			log.Warn("pending saves dropped at shutdown", "count", n)
		}
		return nil
	})

	if cfg.Workspace.Watch {
		w, err := workspace.NewWatcher(cfg.Workspace.Dir,
			workspace.WithWatcherLogger(logger.Component(log, "watcher")),
			workspace.WithWatchExclude(cfg.Workspace.Exclude...),
		)
		if err != nil {
			handler.Shutdown()
			return fmt.Errorf("watch workspace: %w", err)
		}
		w.OnChange(func(path string) {
			log.Debug("workspace changed", "path", path)
			rt.Service.Schedule(sessionID, service.SaveOptions{})
		})
		w.StartAsync()
		handler.OnShutdown("watcher", func(context.Context) error { return w.Stop() })
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			handler.Trigger()
		}
	}()

	log.Info("wsnapd started", "workspace", cfg.Workspace.Dir, "session_id", sessionID, "watch", cfg.Workspace.Watch)
	if err := handler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("wsnapd stopped")
	return nil
}

// newHTTPServer builds the admin API server. With a certificate
// configured it serves TLS and reloads the pair when the files change.
func newHTTPServer(cfg *config.Config, rt *bootstrap.Runtime, metrics *metric.Registry, log *slog.Logger) (*httpserver.Server, error) {
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Service: rt.Service,
		Ready: func(ctx context.Context) error {
			_, err := rt.Store.Stats(ctx)
			return err
		},
		Logger:    logger.Component(log, "http"),
		Metrics:   metrics,
		RateLimit: cfg.Server.HTTP.RateLimit,
		RateBurst: cfg.Server.HTTP.RateBurst,
		Tracing:   cfg.Trace.Enabled,
	})

	opts := []httpserver.Option{httpserver.WithLogger(logger.Component(log, "http"))}
	if cfg.Server.HTTP.TLSCertFile != "" {
		certs, err := certwatch.NewWatcher(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			certwatch.WithLogger(logger.Component(log, "certwatch")))
		if err != nil {
			return nil, fmt.Errorf("load TLS certificate: %w", err)
		}
		certs.StartAsync()
		opts = append(opts, httpserver.WithTLS(certs))
	}
	return httpserver.New(cfg.Server.HTTP.Addr, router, opts...), nil
}
