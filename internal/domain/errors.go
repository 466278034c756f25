// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTransition is returned when a job status change would regress
	// or jump between terminal states.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidScore is returned when a score is attached to a job that
	// cannot carry one or the value is out of range.
	ErrInvalidScore = errors.New("invalid score")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
