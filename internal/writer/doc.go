// Package writer persists per-peer traffic statistics to PostgreSQL.
//
// The StatsWriter samples router status on a fixed interval and appends one
// row per peer to the peer_stats table. Rows are never updated; every sample
// carries the run id of the daemon instance that produced it.
package writer
