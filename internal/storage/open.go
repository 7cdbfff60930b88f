package storage

import (
	"fmt"
	"log/slog"
)

// Open creates the engine selected by cfg.Engine.
func Open(cfg KVConfig, logger *slog.Logger) (KVEngine, error) {
	switch cfg.Engine {
	case "", "badger":
		engine, err := NewBadgerEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case "memory":
		return NewMemoryEngine(), nil
	default:
		return nil, fmt.Errorf("storage: unknown engine %q", cfg.Engine)
	}
}
