// Package engine implements identity reconciliation for idlink.
//
// An identify request runs as an ordered pipeline inside one store
// transaction:
//
//  1. Match: active contacts whose email or phone equals the query.
//  2. Resolve: walk each match's linked_id to its primary (resolver.go).
//  3. Reconcile: create, merge, demote and relink until the query's cluster
//     is consistent (merge.go).
//  4. View: re-read the cluster and build the canonical response (view.go).
//
// Because the view is built in the same transaction as the writes, a caller
// never observes another request's intermediate state.
//
// CLUSTER INVARIANTS (hold before and after every transaction):
//   - A primary contact has no linked_id.
//   - A secondary links directly to a primary, never to another secondary.
//   - A cluster has exactly one primary.
//   - The primary is the earliest created member (ties: smallest id).
//
// Resolver, merge and view code depends only on the Contacts interface, so
// they run against *store.Tx in production and an in-memory fake in tests.
package engine
