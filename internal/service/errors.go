package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/store"
)

// Common service errors. The API layer maps them to HTTP status codes.
var (
	// ErrJobNotFound indicates that the job does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrJobNotFound = errors.New("job not found")

	// ErrNotOwned indicates a job is owned by a different user than the one making the request.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = fmt.Errorf("%w: job is owned by another user", domain.ErrUnauthorized)

	// ErrNoAudio is returned for audio operations on a job without an audio artifact.
	ErrNoAudio = errors.New("job has no audio artifact")

	// ErrNotScorable is returned when a score is attached to anything but a completed quiz.
	ErrNotScorable = fmt.Errorf("%w: only completed quizzes accept a score", domain.ErrInvalidScore)

	// ErrJobSettled is returned when a generating-only operation targets a
	// completed or failed job.
	ErrJobSettled = errors.New("job is no longer generating")
)

// JobServiceError wraps errors from the job service with context.
type JobServiceError struct {
	// Operation is the operation that failed (e.g., "rename_job", "refresh_audio")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for JobServiceError.
func (e *JobServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("job service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *JobServiceError) Unwrap() error {
	return e.Err
}

// NewJobServiceError creates a new JobServiceError.
// It returns known sentinel errors directly without wrapping.
func NewJobServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, store.ErrJobNotFound):
		return ErrJobNotFound
	case errors.Is(err, store.ErrStatusConflict):
		return ErrJobSettled
	case errors.Is(err, ErrNotOwned), errors.Is(err, ErrNoAudio),
		errors.Is(err, ErrNotScorable), errors.Is(err, ErrJobSettled),
		errors.Is(err, domain.ErrInvalidScore), errors.Is(err, domain.ErrValidation):
		return err
	}

	return &JobServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
