// Package postgres provides the PostgreSQL implementation of store.JobStore,
// the embedded schema migrations, and a realtime transport that listens for
// the NOTIFY events the schema's trigger emits on every job row change.
package postgres
