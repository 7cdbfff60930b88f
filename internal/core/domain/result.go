package domain

// Status is the outcome class of a best-effort operation.
type Status int

const (
	// StatusOK means the operation completed.
	StatusOK Status = iota
	// StatusNotFound means the key was absent. It is not a failure.
	StatusNotFound
	// StatusFailed means the backing storage or transport failed.
	StatusFailed
)

// String returns the status label used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result carries a value together with the outcome of the operation that
// produced it. Persistence layers return Results instead of errors so that
// callers decide when degradation becomes user visible.
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

// NotFound returns an empty not-found result.
func NotFound[T any]() Result[T] {
	return Result[T]{Status: StatusNotFound}
}

// Failed returns a failure result carrying err.
func Failed[T any](err error) Result[T] {
	if err == nil {
		err = ErrStorage
	}
	return Result[T]{Status: StatusFailed, Err: err}
}

// IsOK reports whether the operation completed.
func (r Result[T]) IsOK() bool { return r.Status == StatusOK }

// IsNotFound reports whether the key was absent.
func (r Result[T]) IsNotFound() bool { return r.Status == StatusNotFound }

// IsFailed reports whether the operation failed.
func (r Result[T]) IsFailed() bool { return r.Status == StatusFailed }

// Unwrap returns the value and, for failures, the error.
// Not-found yields the zero value and a nil error.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}
