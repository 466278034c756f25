// Package realtime keeps a job registry in sync with the backend over a push
// subscription.
//
// A Channel owns one live subscription per parent resource. Every pushed
// insert, update or delete is merged into the registry; replaying an event is
// harmless. When the subscription drops, the channel reconnects with
// exponential backoff and then resynchronizes from a full listing so that
// events missed while disconnected are not lost.
//
// Completion notifications are raised only for update events that move a job
// from generating to completed, at most once per job.
package realtime
