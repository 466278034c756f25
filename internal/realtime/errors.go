package realtime

import "errors"

var (
	// ErrSubscriptionLost is reported by a Subscription whose stream ended
	// without Close being called.
	ErrSubscriptionLost = errors.New("realtime subscription lost")

	// ErrAlreadyStarted is returned by Start on a running channel.
	ErrAlreadyStarted = errors.New("channel already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("channel stopped")
)
