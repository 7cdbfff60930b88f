package domain

import (
	"errors"
	"fmt"
)

// DomainError is a domain error with a structured error code.
// Codes have the form WS-<AREA>-<NNNN>; the last four digits follow HTTP
// status semantics (4040 not found, 5001 storage, ...).
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap is shorthand for WithCause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// An empty code matches any DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Snapshot errors (SNAP).
var (
	ErrSnapshotNotFound   = NewDomainError("WS-SNAP-4040", "snapshot not found")
	ErrSnapshotValidation = NewDomainError("WS-SNAP-4001", "snapshot validation failed")
	ErrSnapshotCorrupted  = NewDomainError("WS-SNAP-4220", "snapshot record corrupted")
	ErrRestoreFailed      = NewDomainError("WS-SNAP-5002", "snapshot restore failed")
)

// Remote mirror errors (MIRR).
var (
	ErrMirrorDisabled    = NewDomainError("WS-MIRR-4030", "remote mirror disabled")
	ErrMirrorUnavailable = NewDomainError("WS-MIRR-5020", "remote mirror unavailable")
)

// Auto-heal errors (HEAL).
var (
	ErrHealNotApplicable = NewDomainError("WS-HEAL-4220", "no auto-heal rule applies")
)

// System errors (SYS).
var (
	ErrInternal           = NewDomainError("WS-SYS-5000", "internal error")
	ErrStorage            = NewDomainError("WS-SYS-5001", "storage error")
	ErrServiceUnavailable = NewDomainError("WS-SYS-5030", "service unavailable")
	ErrRateLimited        = NewDomainError("WS-SYS-4290", "too many requests")
	ErrBadRequest         = NewDomainError("WS-SYS-4000", "bad request")
)

// Argument errors (ARG).
var (
	ErrInvalidArgument = NewDomainError("WS-ARG-1001", "invalid argument")
	ErrMissingArgument = NewDomainError("WS-ARG-1002", "missing required argument")
)
