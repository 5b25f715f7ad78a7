package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the normal outcome when a listing holds nothing that matches.
var ErrNotFound = errors.New("not found")

// TransientError wraps a failure worth retrying (network, timeouts, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// RateLimitError is a transient failure where the remote asked us to slow down.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string { return "rate limited: " + e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that retrying will not fix (4xx, bad content).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// StateIOError reports that the persisted state could not be read or written.
type StateIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StateIOError) Error() string {
	return fmt.Sprintf("state %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StateIOError) Unwrap() error { return e.Err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// RateLimited marks err as a rate-limit rejection.
func RateLimited(err error) error {
	if err == nil {
		return nil
	}
	return &RateLimitError{Err: err}
}

// IsRateLimited reports whether err carries a rate-limit rejection.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsRetryable reports whether err should be retried.
// Unclassified errors are not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var tr *TransientError
	return errors.As(err, &tr) || IsRateLimited(err)
}
