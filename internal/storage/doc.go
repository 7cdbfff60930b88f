// Package storage provides the embedded key-value engines wsnap persists
// snapshot records into.
//
// Two engines implement KVEngine:
//
//   - BadgerEngine: durable LSM store (Badger v3), optionally in-memory
//   - MemoryEngine: map-backed engine for tests and ephemeral daemons
//
// Each KVEngine call runs in its own transaction, so a reader never
// observes a partially written value.
package storage
