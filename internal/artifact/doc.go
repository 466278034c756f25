// Package artifact keeps the time-limited access URL of a generated audio
// artifact usable.
//
// A Guard evaluates a job's URL expiry on start and on a recurring timer.
// When the URL has lapsed it asks the backend to reissue a URL for the same
// stored object; the artifact itself is never regenerated. At most one refresh
// per guard is in flight, and a failed refresh keeps the stale URL so the
// user still has something to retry against.
package artifact
