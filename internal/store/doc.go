// Package store declares the persistence contract for generation jobs and
// the errors implementations map driver failures onto. The Postgres
// implementation lives in platform/postgres.
package store
