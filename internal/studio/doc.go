// Package studio wires the generation job engine together for one open
// parent resource at a time.
//
// Opening a notebook creates a Session that shares the notebook's job
// registry, keeps it synchronized over the realtime channel, guards the
// access URL of every completed audio job, and exposes the user's mutations
// (rename, score, delete) as optimistic edits. Opening another notebook, or
// closing the studio, tears the previous session down so that no timer or
// subscription can write into a stale registry.
package studio
