// Package store provides SQLite-backed storage for the source event
// history.
//
// Every outward-facing universe event (source added/removed, limit
// reached, channel data updates are deliberately excluded - they arrive
// at wire rate) is appended to a single source_events table together
// with the arbitration state observed at that instant. The `sacnd
// history` command reads it back for operators debugging flaky rigs.
//
// Database configuration follows the usual embedded-SQLite setup:
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single connection: SQLite supports one writer at a time
package store
