package config

import (
	"strings"

	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
)

// Sanitize returns a copy of the config with secrets masked, for
// logging and `config show`.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	sanitized.Workspace.Exclude = append([]string(nil), cfg.Workspace.Exclude...)

	if sanitized.Snapshot.EncryptionKey != "" {
		sanitized.Snapshot.EncryptionKey = maskSecret(sanitized.Snapshot.EncryptionKey)
	}
	if sanitized.Snapshot.Passphrase != "" {
		sanitized.Snapshot.Passphrase = "****"
	}
	if sanitized.Mirror.DSN != "" {
		sanitized.Mirror.DSN = logger.RedactDSN(sanitized.Mirror.DSN)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
