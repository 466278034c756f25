package studio

import "errors"

var (
	// ErrMutationFailed wraps a rejected rename, score or delete.
	ErrMutationFailed = errors.New("mutation failed")

	// ErrNotScorable is returned when attaching a score to a job that is not
	// a completed quiz.
	ErrNotScorable = errors.New("only completed quizzes can be scored")

	// ErrSessionClosed is returned by every session operation after Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrNoAudio is returned when a player is requested for a job without a
	// completed audio artifact.
	ErrNoAudio = errors.New("job has no playable audio")
)
