package playback

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/phrazzld/scry-studio/internal/domain"
)

// State is the player's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StatePlaying  State = "playing"
	StateErrored  State = "errored"
	StateTerminal State = "terminal"
)

// FailureClass decides how a load failure is recovered.
type FailureClass string

const (
	FailureCredentialExpired FailureClass = "credential_expired"
	FailureTransient         FailureClass = "transient"
)

// Classify decides the recovery path for err. A failure is treated as a
// credential problem when the media layer says so or when the artifact's URL
// has already lapsed at now.
func Classify(err error, artifact *domain.AudioArtifact, now time.Time) FailureClass {
	if errors.Is(err, ErrCredentialExpired) || artifact.Expired(now) {
		return FailureCredentialExpired
	}
	return FailureTransient
}

// RetryDelay returns the wait before automatic retry number attempt
// (starting at 1): attempt times base, plus up to a quarter of base of
// jitter derived from seed so that jobs created together do not retry in
// lockstep.
func RetryDelay(attempt int, base time.Duration, seed time.Time) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(attempt) * base
	if spread := int64(base / 4); spread > 0 {
		r := rand.New(rand.NewPCG(uint64(seed.UnixNano()), uint64(attempt)))
		delay += time.Duration(r.Int64N(spread + 1))
	}
	return delay
}
