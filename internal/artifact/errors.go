package artifact

import "errors"

var (
	// ErrNoAudio is returned when the guarded job has no audio artifact.
	ErrNoAudio = errors.New("job has no audio artifact")

	// ErrRefreshFailed wraps failures from the refresh endpoint.
	ErrRefreshFailed = errors.New("artifact refresh failed")

	// ErrGuardStopped is returned by Refresh after Stop.
	ErrGuardStopped = errors.New("expiry guard stopped")
)
