package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AgenciaV10/wsnap/internal/mirror"
)

// Verify validates the configuration. For the badger engine the data
// directory is created if missing.
func Verify(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	checks := []func(*Config) error{
		verifyWorkspace,
		verifySnapshot,
		verifyStorage,
		verifyMirror,
		verifyServer,
		verifyLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func verifyWorkspace(cfg *Config) error {
	ws := &cfg.Workspace
	if ws.Dir == "" {
		return errors.New("workspace.dir is required")
	}
	if ws.MaxFileBytes < 0 {
		return errors.New("workspace.max_file_bytes must not be negative")
	}
	for _, name := range ws.Exclude {
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("workspace.exclude entry %q must be a directory name, not a path", name)
		}
	}
	if ws.Watch && ws.SessionID == "" {
		return errors.New("workspace.session_id is required when workspace.watch is set")
	}
	if cfg.Restore.OnBoot && ws.SessionID == "" {
		return errors.New("workspace.session_id is required when restore.on_boot is set")
	}
	return nil
}

func verifySnapshot(cfg *Config) error {
	s := &cfg.Snapshot
	if s.Debounce < 0 {
		return errors.New("snapshot.debounce must not be negative")
	}
	enc, err := s.Encryption()
	if err != nil {
		return fmt.Errorf("snapshot.encryption_key: %w", err)
	}
	if err := enc.Validate(); err != nil {
		return err
	}
	return nil
}

func verifyStorage(cfg *Config) error {
	st := &cfg.Storage
	switch st.Engine {
	case "memory":
		return nil
	case "", "badger":
	default:
		return fmt.Errorf("storage.engine %q is not supported (badger, memory)", st.Engine)
	}

	if st.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(st.DataDir, 0o750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	if st.GCThreshold < 0 || st.GCThreshold >= 1 {
		return errors.New("storage.gc_threshold must be in [0, 1)")
	}
	return nil
}

func verifyMirror(cfg *Config) error {
	m := &cfg.Mirror
	if !m.Enabled {
		return nil
	}
	if strings.TrimSpace(m.DSN) == "" {
		return errors.New("mirror.dsn is required when mirror.enabled is set")
	}
	if m.Table != "" && !mirror.ValidTable(m.Table) {
		return fmt.Errorf("mirror.table %q is not a valid identifier", m.Table)
	}
	if m.Timeout < 0 {
		return errors.New("mirror.timeout must not be negative")
	}
	return nil
}

func verifyServer(cfg *Config) error {
	h := &cfg.Server.HTTP
	if h.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if (h.TLSCertFile == "") != (h.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{h.TLSCertFile, h.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http: %w", err)
		}
	}
	if h.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	if h.RateLimit > 0 && h.RateBurst < 1 {
		return errors.New("server.http.rate_burst must be at least 1 when rate_limit is set")
	}
	return nil
}

func verifyLog(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not supported", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not supported (json, text)", cfg.Log.Format)
	}
	return nil
}

