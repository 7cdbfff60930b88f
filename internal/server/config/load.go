package config

import (
	"fmt"

	"github.com/AgenciaV10/wsnap/internal/infra/confloader"
)

// Load reads defaults, the optional YAML file at path, WSNAP_ environment
// variables and overrides, in that order, and verifies the result.
// Override keys are dotted koanf paths such as "storage.data_dir".
func Load(path string, overrides map[string]any) (*Config, error) {
	cfg := Default()

	var opts []confloader.Option
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if len(overrides) > 0 {
		opts = append(opts, confloader.WithOverrides(overrides))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
