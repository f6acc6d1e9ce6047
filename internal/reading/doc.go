// Package reading persists decoded BLE readings in SQLite.
//
// The readings table holds the latest reading per device address and
// decoder kind; it is what the HTTP API serves and what a restarted gateway
// republishes. The reading_history table keeps every accepted reading when
// history is enabled and is pruned by age.
//
// Both tables are created by the embedded migrations.
package reading
