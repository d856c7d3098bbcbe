// Package store provides the SQLite-backed table.Store for citycycle.
//
// Each collection is a set of rows keyed by (collection, row_num). Row data
// is stored as canonical JSON arrays produced by ir.MarshalRow, so a row read
// back is byte-identical to the row written.
//
// # Ordering
//
// Ledger replay depends on rows coming back in insertion order. All reads
// use ORDER BY row_num ASC, and appends always take max(row_num)+1 inside the
// same transaction as the insert. Rows are never renumbered except by Replace.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The store is single-writer: the connection pool is capped at one
// connection, matching the one-cycle-at-a-time execution model.
package store
