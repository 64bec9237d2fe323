package retry

import (
	"errors"
	"fmt"
)

// Common errors returned by the retry policy.
var (
	// ErrExhausted is returned when all retry attempts are exhausted.
	ErrExhausted = errors.New("max retries exceeded")

	// ErrContextCancelled is returned when the context is cancelled during backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// ExhaustedError is the terminal condition after the maximum number of
// attempts. It carries either the last retryable HTTP status or the last
// transport error, whichever ended the final attempt.
type ExhaustedError struct {
	Attempts   int
	LastStatus int
	Err        error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("max retries exceeded after %d attempts, last HTTP status %d", e.Attempts, e.LastStatus)
}

// Unwrap exposes the underlying transport error for errors.Is/As.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is matches the ErrExhausted sentinel.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}
