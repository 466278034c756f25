package generation

import "errors"

// Common errors returned by generators.
var (
	// ErrGenerationFailed is returned when generation fails for any general reason.
	ErrGenerationFailed = errors.New("content generation failed")

	// ErrInvalidResponse is returned when a producer's response cannot be parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from generator")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry.
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptySource is returned when a notebook has no text to generate from.
	ErrEmptySource = errors.New("notebook source is empty")
)
