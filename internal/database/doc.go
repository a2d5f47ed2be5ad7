// Package database provides the PostgreSQL connection pool used to persist
// per-peer traffic statistics.
//
// The database is optional: routing never depends on it, and the daemon only
// connects when database.enabled is set.
package database
