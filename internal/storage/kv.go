package storage

import (
	"context"
	"errors"
	"io"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv engine closed")
)

// KVEngine defines the interface for embedded key-value storage.
//
// Implementations must be safe for concurrent use.
type KVEngine interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores a key-value pair, replacing any previous value.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan iterates over keys with a given prefix in key order.
	// Callback returns false to stop iteration.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// Backup writes a full dump of the store to w.
	Backup(ctx context.Context, w io.Writer) error

	// Load replaces the store contents with a dump produced by Backup.
	Load(ctx context.Context, r io.Reader) error

	// GC triggers garbage collection (for LSM-based engines like Badger).
	// Returns bytes reclaimed.
	GC(ctx context.Context) (uint64, error)

	// Stats returns storage statistics (size, keys count, etc.).
	Stats(ctx context.Context) (*KVStats, error)

	// Close gracefully shuts down the KV engine.
	Close() error
}

// KVStats contains storage engine statistics.
type KVStats struct {
	// Engine is the engine name ("badger", "memory").
	Engine string

	// TotalKeys is the approximate number of keys.
	TotalKeys uint64

	// TotalSize is the total storage usage in bytes.
	TotalSize uint64

	// LSMSize is the LSM tree size (Badger only).
	LSMSize uint64

	// ValueLogSize is the value log size (Badger only).
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64

	// GCBytesReclaimed is the total bytes reclaimed by GC.
	GCBytesReclaimed uint64
}

// KVConfig configures an embedded KV engine.
type KVConfig struct {
	// Engine specifies the KV engine type ("badger", "memory").
	// Default: "badger"
	Engine string

	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps Badger data in memory only.
	InMemory bool

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// NumLevelZeroTables is the number of Level 0 tables before compaction.
	// Default: 5
	NumLevelZeroTables int

	// NumLevelZeroTablesStall is the number of Level 0 tables that triggers write stall.
	// Default: 10
	NumLevelZeroTablesStall int

	// SyncWrites enables fsync after each write.
	// Default: true. Snapshots are the only copy of the workspace.
	SyncWrites bool
}

// DefaultKVConfig returns the default KV configuration.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Engine: "badger",
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:              "10m",
		GCThreshold:             0.5,
		CacheSize:               64 << 20,  // 64MB
		ValueLogFileSize:        256 << 20, // 256MB
		NumMemtables:            2,
		NumLevelZeroTables:      5,
		NumLevelZeroTablesStall: 10,
		SyncWrites:              true,
	}
}
