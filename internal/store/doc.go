// Package store provides SQLite-backed durable storage for contacts.
//
// The store keeps a single contacts table. Every contact is either a
// primary (linked_id IS NULL) or a secondary pointing at a primary.
// Rows are never physically deleted; deleted_at marks a soft delete.
//
// # Critical Patterns
//
// Active Rows Only
//   - Every contract read filters deleted_at IS NULL
//   - Soft-deleted contacts never match, resolve or appear in a cluster
//
// Deterministic Query Results
//   - Multi-row queries use ORDER BY created_at ASC, id ASC
//   - created_at comes from an injected Clock, never from SQLite
//
// Atomic Requests
//   - All contact operations run on a Tx obtained from Store.InTx
//   - The transaction takes the write lock at BEGIN (_txlock=immediate)
//   - A transient SQLITE_BUSY/SQLITE_LOCKED failure is retried once
//   - Each attempt runs under a bounded timeout
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: linked_id must reference an existing contact
package store
