// Package logger provides structured logging for wsnap.
//
//   - logger.go: log/slog handler setup, dynamic level, component scoping
//   - context.go: context-aware logging with request/trace IDs
//   - redact.go: sensitive data redaction (secrets, DSN credentials)
package logger
