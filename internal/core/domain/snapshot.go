package domain

import (
	"path"
	"strings"
	"time"
	"unicode"
)

// Snapshot constraints.
const (
	MaxSessionIDLength = 256
)

// FileEntry is a single captured text file.
type FileEntry struct {
	// Path is posix-style and relative to the record root.
	Path string `json:"path"`

	// Content is the UTF-8 text of the file.
	Content string `json:"content"`
}

// Record is a full capture of a workspace, keyed by session id.
//
// A new save replaces the previous record for the same session wholesale.
type Record struct {
	// SessionID identifies the chat/build workspace across reloads.
	SessionID string `json:"session_id"`

	// CreatedAt is the capture timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// Root is the workspace root the files were captured from.
	// Entry paths may be prefixed by it; restore strips it before re-anchoring.
	Root string `json:"root,omitempty"`

	// Files lists captured files in walk order. Paths are not deduplicated.
	Files []FileEntry `json:"files"`

	// LastStartCommand is the launch command recorded with the capture.
	LastStartCommand string `json:"last_start_command,omitempty"`
}

// NewRecord creates a record stamped with the current time.
func NewRecord(sessionID, root string, files []FileEntry, lastStartCommand string) *Record {
	if files == nil {
		files = []FileEntry{}
	}
	return &Record{
		SessionID:        sessionID,
		CreatedAt:        time.Now().UnixMilli(),
		Root:             root,
		Files:            files,
		LastStartCommand: lastStartCommand,
	}
}

// Validate checks record invariants that the store relies on.
func (r *Record) Validate() error {
	if r == nil {
		return ErrSnapshotValidation.WithDetails("record is nil")
	}
	return ValidateSessionID(r.SessionID)
}

// CreatedTime returns CreatedAt as a time.Time.
func (r *Record) CreatedTime() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// FileCount returns the number of captured files.
func (r *Record) FileCount() int {
	return len(r.Files)
}

// TotalBytes returns the summed content size of all files.
func (r *Record) TotalBytes() int64 {
	var n int64
	for _, f := range r.Files {
		n += int64(len(f.Content))
	}
	return n
}

// RelativePath strips the record root and any leading slashes from p.
func (r *Record) RelativePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if r.Root != "" && r.Root != "/" {
		root := strings.TrimSuffix(strings.ReplaceAll(r.Root, "\\", "/"), "/")
		if p == root {
			p = ""
		} else if strings.HasPrefix(p, root+"/") {
			p = p[len(root):]
		}
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// ValidateSessionID checks that id is usable as a store key.
func ValidateSessionID(id string) error {
	if id == "" {
		return ErrMissingArgument.WithDetails("session id is required")
	}
	if len(id) > MaxSessionIDLength {
		return ErrSnapshotValidation.WithDetails("session id too long")
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return ErrSnapshotValidation.WithDetails("session id contains whitespace or control characters")
		}
	}
	return nil
}

// Summary describes a stored record without its file contents.
type Summary struct {
	SessionID string `json:"session_id"`
	CreatedAt int64  `json:"created_at"`
	FileCount int    `json:"file_count"`
	Size      int    `json:"size"`
	Encrypted bool   `json:"encrypted"`
}
