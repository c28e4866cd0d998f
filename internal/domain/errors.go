package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound        = errors.New("scoring job not found")
	ErrDuplicateJob       = errors.New("scoring job already exists")
	ErrConflict           = errors.New("status compare-and-set conflict")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidState       = errors.New("operation not allowed in current job state")
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
	ErrValidation         = errors.New("validation failed")
	ErrStore              = errors.New("job store unavailable")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrTemplateNotFound   = errors.New("prompt template not found")
	ErrResolution         = errors.New("prompt resolution failed")
	ErrSnapshotAlreadySet = errors.New("prompt snapshot already recorded")
	ErrNotStale           = errors.New("job is not stale")
)

// ConflictError reports that a compare-and-set lost because the stored
// status no longer matched the expected one.
type ConflictError struct {
	JobID    string
	Expected JobStatus
	Actual   JobStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("job %s: expected status %s, found %s", e.JobID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StoreError wraps an underlying persistence failure.
func StoreError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
