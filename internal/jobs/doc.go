// Package jobs holds the client-side registry of generation jobs for one
// parent resource.
//
// The Registry is the single source of truth for rendering. It merges three
// inputs: provisional records written ahead of a submission, rows pushed over
// the realtime channel, and optimistic user edits awaiting a mutation
// response. Pending edits are tracked per field so a pushed row can update the
// fields the user did not touch without clobbering the ones they did.
//
// Deleted jobs leave a tombstone so that late insert or update events cannot
// resurrect them, and status regressions (completed back to generating) are
// discarded.
package jobs
