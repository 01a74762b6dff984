// Package ir provides the contact data model shared by the store, the
// reconciliation engine and the transports.
//
// This package contains type definitions and input normalization only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Contacts are plain values; only the store writes them
//   - Optional fields are pointers (nil = absent), never empty strings
//   - Ordering uses (CreatedAt, ID), never insertion order
//   - JSON tags on response types use the public camelCase wire names
package ir
