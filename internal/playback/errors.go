package playback

import "errors"

var (
	// ErrCredentialExpired marks a load failure caused by a lapsed or
	// rejected access URL.
	ErrCredentialExpired = errors.New("artifact credential expired")

	// ErrTerminal is reported once automatic retries are exhausted.
	ErrTerminal = errors.New("playback failed after retries")

	// ErrNoAudio is returned when the job has no audio to play.
	ErrNoAudio = errors.New("job has no audio")

	// ErrNotLoaded is returned by controls that need loaded media.
	ErrNotLoaded = errors.New("media not loaded")

	// ErrClosed is returned by every control after Close.
	ErrClosed = errors.New("player closed")
)
