// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Repricing errors, local to a single listing. The batch repricer
	// catches these and emits a flagged item rather than aborting the run.
	ErrInvalidStatistics     = errors.New("invalid market statistics")
	ErrDegeneratePrice       = errors.New("degenerate listing price")
	ErrStrategyMisconfigured = errors.New("strategy misconfigured")

	// ErrRunAborted indicates the run was cancelled between listings; the
	// partial response remains valid.
	ErrRunAborted = errors.New("run aborted")

	// Marketplace errors.
	ErrDiscogsConnection = errors.New("discogs connection failed")
	ErrInvalidListing    = errors.New("invalid listing")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	// Check for specific retryable errors
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrDiscogsConnection) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for retryable error type
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
