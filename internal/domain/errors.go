package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrChecksumMismatch  = errors.New("content checksum mismatch")
	ErrResourceChanged   = errors.New("resource changed during fetch")
	ErrRangeNotSupported = errors.New("server ignored range request")
	ErrStalled           = errors.New("no progress across resumed connections")
	ErrSessionClosed     = errors.New("session is closed")
)

// StatusError represents a non-2xx HTTP response.
// 5xx-class statuses are transient and eligible for retry;
// 4xx-class statuses are client errors and are never retried.
type StatusError struct {
	Code int
}

// Error returns the error message
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Transient returns true if the status is eligible for retry
func (e *StatusError) Transient() bool {
	return e.Code >= 500
}

// NewStatusError creates a new status error
func NewStatusError(code int) *StatusError {
	return &StatusError{Code: code}
}

// TransientError wraps a retryable failure together with the number of
// attempts spent on it. It is surfaced only when the retry budget is
// exhausted, carrying the last underlying failure.
type TransientError struct {
	Err      error
	Attempts int
}

// Error returns the error message
func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gave up after %d attempts: %s", e.Attempts, e.Err.Error())
	}
	return fmt.Sprintf("gave up after %d attempts", e.Attempts)
}

// Unwrap returns the underlying error
func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a new transient error
func NewTransientError(err error, attempts int) *TransientError {
	return &TransientError{Err: err, Attempts: attempts}
}

// IsTransient returns true if the error is a retry-budget failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatalProtocol returns true if the error indicates the resource or
// its integrity metadata changed mid-fetch. These errors are never
// retried.
func IsFatalProtocol(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrResourceChanged) ||
		errors.Is(err, ErrRangeNotSupported)
}

// IsFatalClient returns true if the error is a 4xx-class response
func IsFatalClient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500
	}
	return false
}
