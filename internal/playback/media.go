package playback

import (
	"context"
	"time"
)

// Media is the audio element the player drives.
type Media interface {
	// Load prepares url for playback and returns once it is playable.
	Load(ctx context.Context, url string) error
	Play() error
	Pause() error
	Seek(position time.Duration) error
	// SetVolume takes a value in [0, 1].
	SetVolume(volume float64) error
	Position() time.Duration
}
