// Package playback drives audio playback of a generated artifact and
// recovers from load failures.
//
// Failures are classified when they happen. A lapsed access URL is handed to
// the artifact guard for a credential refresh and does not count against the
// retry budget; once the guard reports a new URL the player reloads and picks
// up where it was. Any other failure is retried against the same URL a
// bounded number of times with a growing delay before the player gives up
// and waits for the user.
package playback
