package jobs

import "errors"

var (
	// ErrJobNotFound is returned when an operation names a job the registry
	// does not hold.
	ErrJobNotFound = errors.New("job not found")

	// ErrRegistryClosed is returned by writes after Close.
	ErrRegistryClosed = errors.New("registry closed")

	// ErrWrongParent is returned when a job belongs to a different parent
	// resource than the registry.
	ErrWrongParent = errors.New("job belongs to a different parent")

	// ErrDuplicateJob is returned when a provisional insert reuses a known id.
	ErrDuplicateJob = errors.New("job already exists")

	// ErrUnknownEdit is returned when confirming or rolling back an edit that
	// was already resolved or whose job is gone.
	ErrUnknownEdit = errors.New("unknown edit")

	// ErrEmptyPatch is returned when an optimistic edit touches no field.
	ErrEmptyPatch = errors.New("patch touches no field")
)
