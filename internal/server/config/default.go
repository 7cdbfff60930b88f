package config

import (
	"time"

	"github.com/AgenciaV10/wsnap/internal/mirror"
	"github.com/AgenciaV10/wsnap/internal/scheduler"
	"github.com/AgenciaV10/wsnap/internal/storage/snapshot"
	"github.com/AgenciaV10/wsnap/internal/workspace"
)

// Default configuration values.
const (
	DefaultHTTPAddr  = "127.0.0.1:5080"
	DefaultRateBurst = 20

	DefaultEngine      = "badger"
	DefaultDataDir     = "/var/lib/wsnap/data"
	DefaultGCInterval  = 10 * time.Minute
	DefaultGCThreshold = 0.5

	DefaultMirrorTimeout = 5 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Workspace: WorkspaceSection{
			Dir:     ".",
			Exclude: append([]string(nil), workspace.DefaultExclude...),
		},
		Snapshot: SnapshotSection{
			Debounce: scheduler.DefaultDelay,
			Cipher:   snapshot.AlgorithmAuto,
		},
		Storage: StorageSection{
			Engine:      DefaultEngine,
			DataDir:     DefaultDataDir,
			GCInterval:  DefaultGCInterval,
			GCThreshold: DefaultGCThreshold,
			SyncWrites:  true,
		},
		Mirror: MirrorSection{
			Table:   mirror.DefaultTable,
			Timeout: DefaultMirrorTimeout,
		},
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:      DefaultHTTPAddr,
				RateBurst: DefaultRateBurst,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
