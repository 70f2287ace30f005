package service

import "errors"

// Error taxonomy surfaced to clients. Conflicts are retryable; forbidden
// and not-found are terminal.
var (
	// ErrConflict marks a retryable collision: a lock held by another
	// actor, an archived board, or a target in a terminal state.
	ErrConflict = errors.New("conflict")

	// ErrForbidden marks a failed permission check.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing entity or parent.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed or inconsistent input.
	ErrValidation = errors.New("invalid request")
)
