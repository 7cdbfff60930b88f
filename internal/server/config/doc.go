// Package config defines the wsnap configuration.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation (required fields, paths, value ranges)
//   - sanitize.go: masking of secrets for logging
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// WSNAP_ environment variables and command-line flags.
package config
