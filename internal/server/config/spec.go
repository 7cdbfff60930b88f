package config

import (
	"time"

	"github.com/AgenciaV10/wsnap/internal/storage"
	"github.com/AgenciaV10/wsnap/internal/storage/snapshot"
)

// Config is the root configuration shared by wsnapd and wsnap.
type Config struct {
	Workspace WorkspaceSection `koanf:"workspace" json:"workspace" yaml:"workspace"`
	Snapshot  SnapshotSection  `koanf:"snapshot" json:"snapshot" yaml:"snapshot"`
	Storage   StorageSection   `koanf:"storage" json:"storage" yaml:"storage"`
	Mirror    MirrorSection    `koanf:"mirror" json:"mirror" yaml:"mirror"`
	Restore   RestoreSection   `koanf:"restore" json:"restore" yaml:"restore"`
	Server    ServerSection    `koanf:"server" json:"server" yaml:"server"`
	Log       LogSection       `koanf:"log" json:"log" yaml:"log"`
	Trace     TraceSection     `koanf:"trace" json:"trace" yaml:"trace"`
}

// WorkspaceSection selects the tree that is snapshotted.
type WorkspaceSection struct {
	// Dir is the workspace root on disk.
	Dir string `koanf:"dir" json:"dir" yaml:"dir"`

	// SessionID is the snapshot key used by the daemon watcher and
	// restore-on-boot.
	SessionID string `koanf:"session_id" json:"session_id" yaml:"session_id"`

	// Exclude lists directory names skipped at any depth.
	Exclude []string `koanf:"exclude" json:"exclude" yaml:"exclude"`

	// MaxFileBytes skips files larger than this.
	MaxFileBytes int64 `koanf:"max_file_bytes" json:"max_file_bytes" yaml:"max_file_bytes"`

	// Watch saves the session on file changes (daemon only).
	Watch bool `koanf:"watch" json:"watch" yaml:"watch"`
}

// SnapshotSection configures save scheduling and record encryption.
type SnapshotSection struct {
	Debounce      time.Duration `koanf:"debounce" json:"debounce" yaml:"debounce"`
	EncryptionKey string        `koanf:"encryption_key" json:"encryption_key" yaml:"encryption_key"`
	Passphrase    string        `koanf:"passphrase" json:"passphrase" yaml:"passphrase"`
	Cipher        string        `koanf:"cipher" json:"cipher" yaml:"cipher"`
}

// StorageSection configures the local key-value engine.
type StorageSection struct {
	// Engine is "badger" or "memory".
	Engine  string `koanf:"engine" json:"engine" yaml:"engine"`
	DataDir string `koanf:"data_dir" json:"data_dir" yaml:"data_dir"`

	GCInterval  time.Duration `koanf:"gc_interval" json:"gc_interval" yaml:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold" json:"gc_threshold" yaml:"gc_threshold"`
	CacheSize   int64         `koanf:"cache_size" json:"cache_size" yaml:"cache_size"`
	SyncWrites  bool          `koanf:"sync_writes" json:"sync_writes" yaml:"sync_writes"`
}

// MirrorSection configures the optional remote mirror.
type MirrorSection struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	// DSN is a postgres:// URL, a keyword/value string, or sqlite:<path>.
	DSN     string        `koanf:"dsn" json:"dsn" yaml:"dsn"`
	Table   string        `koanf:"table" json:"table" yaml:"table"`
	OwnerID string        `koanf:"owner_id" json:"owner_id" yaml:"owner_id"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}

// RestoreSection configures restore behavior.
type RestoreSection struct {
	// OnBoot restores workspace.session_id when the daemon starts.
	OnBoot bool `koanf:"on_boot" json:"on_boot" yaml:"on_boot"`

	// AutoStart runs the last start command after a restore.
	AutoStart bool `koanf:"auto_start" json:"auto_start" yaml:"auto_start"`
}

// ServerSection configures daemon endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http" json:"http" yaml:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr" json:"addr" yaml:"addr"`
	TLSCertFile string `koanf:"tls_cert_file" json:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file" json:"tls_key_file" yaml:"tls_key_file"`

	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64 `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `koanf:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// TraceSection configures OpenTelemetry.
type TraceSection struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Stdout  bool `koanf:"stdout" json:"stdout" yaml:"stdout"`
}

// KV converts the section to an engine configuration. Unset tuning
// values keep the engine defaults.
func (s StorageSection) KV() storage.KVConfig {
	cfg := storage.DefaultKVConfig(s.DataDir)
	if s.Engine != "" {
		cfg.Engine = s.Engine
	}
	if s.GCInterval > 0 {
		cfg.Badger.GCInterval = s.GCInterval.String()
	}
	if s.GCThreshold > 0 {
		cfg.Badger.GCThreshold = s.GCThreshold
	}
	if s.CacheSize > 0 {
		cfg.Badger.CacheSize = s.CacheSize
	}
	cfg.Badger.SyncWrites = s.SyncWrites
	return cfg
}

// Encryption converts the section to a store encryption configuration.
// The key is decoded from hex or base64.
func (s SnapshotSection) Encryption() (snapshot.EncryptionConfig, error) {
	key, err := snapshot.ParseKey(s.EncryptionKey)
	if err != nil {
		return snapshot.EncryptionConfig{}, err
	}
	enc := snapshot.EncryptionConfig{
		Key:       key,
		Algorithm: s.Cipher,
	}
	if s.Passphrase != "" {
		enc.Passphrase = []byte(s.Passphrase)
	}
	return enc, nil
}
