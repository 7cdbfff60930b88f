package logger

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// Key patterns whose non-empty string values are fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"encryption_key",
	"credential",
	"auth",
	"bearer",
}

// Keys holding connection strings. Only the credentials are masked.
var dsnKeyPatterns = []string{
	"dsn",
	"database_url",
	"conn",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// maskedPassword replaces a DSN password. Matches url.URL.Redacted.
const maskedPassword = "xxxxx"

// keywordPassword matches password=... in keyword/value DSNs.
var keywordPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// redactSensitive redacts an attribute whose key marks it as sensitive.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsDSNKey(a.Key) {
			return slog.String(a.Key, RedactDSN(strVal))
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		return a
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// RedactDSN masks the password of a URL or keyword/value connection string.
// Strings with no credentials are returned unchanged.
func RedactDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
	}
	return keywordPassword.ReplaceAllString(dsn, "${1}"+maskedPassword)
}

// IsSensitiveKey checks if a key name suggests secret content.
func IsSensitiveKey(key string) bool {
	return containsAny(strings.ToLower(key), sensitiveKeyPatterns)
}

// IsDSNKey checks if a key name suggests a connection string.
func IsDSNKey(key string) bool {
	return containsAny(strings.ToLower(key), dsnKeyPatterns)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
