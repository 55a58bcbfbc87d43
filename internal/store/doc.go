// Package store provides the durable state behind the registry: the counter
// account, domain record accounts and the append-only event log.
//
// Two backends implement Backend:
//   - Store: SQLite, the production backend
//   - Memory: in-process, for tests and ephemeral use
//
// # Atomic units
//
// Every registry operation runs inside a single Update call. Either all of its
// writes (counter, record, event) become visible together or none do. A
// callback error or a cancelled context discards the unit.
//
// # Accounts
//
// Accounts are stored as raw bytes in the exact layouts defined by package
// layout, keyed by address: the counter under layout.CounterSeed, records
// under layout.DeriveKey(id). The stored size is the allocation size.
//
// # Event log
//
//   - seq is a logical clock: 1, 2, 3, ... with no gaps
//   - all reads are ORDER BY seq ASC
//   - each row keeps both the Borsh bytes and the canonical JSON payload
//
// # Database configuration (SQLite)
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - a single connection and BEGIN IMMEDIATE: one writer at a time
package store
