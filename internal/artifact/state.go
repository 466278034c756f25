package artifact

import (
	"time"

	"github.com/phrazzld/scry-studio/internal/domain"
)

// State is the freshness of a guarded artifact URL.
type State string

const (
	StateFresh         State = "fresh"
	StateExpiringSoon  State = "expiring_soon"
	StateExpired       State = "expired"
	StateRefreshing    State = "refreshing"
	StateRefreshFailed State = "refresh_failed"
)

// Evaluate classifies an artifact's URL at now. URLs without an expiry are
// always fresh. soon is the window before expiry reported as expiring soon.
func Evaluate(a *domain.AudioArtifact, now time.Time, soon time.Duration) State {
	if a == nil || a.ExpiresAt == nil {
		return StateFresh
	}
	if a.Expired(now) {
		return StateExpired
	}
	if soon > 0 && !now.Add(soon).Before(*a.ExpiresAt) {
		return StateExpiringSoon
	}
	return StateFresh
}
