// Package testdb provisions migrated Postgres databases for integration
// tests, either from SCRY_TEST_DB_URL or a throwaway testcontainers instance.
package testdb
