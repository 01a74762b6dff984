// Package harness runs identity reconciliation scenarios against the real
// engine and store.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: merge_two_primaries
//	description: "What this scenario validates"
//	setup:
//	  - id: 1
//	    email: a@x.com
//	    precedence: primary
//	    at: 1
//	  - id: 2
//	    phone: "123"
//	    precedence: secondary
//	    linked_id: 1
//	    at: 2
//	flow:
//	  - email: a@x.com
//	    phone: "999"
//	    expect:
//	      contact:
//	        primaryContactId: 1
//	        emails: [a@x.com]
//	        phoneNumbers: ["123", "999"]
//	        secondaryContactIds: [2, 3]
//	  - expect:
//	      error: INVALID_REQUEST
//	assertions:
//	  - type: row_count
//	    total: 3
//	  - type: contact_state
//	    id: 3
//	    expect: { precedence: secondary, linked_id: 1 }
//	  - type: invariants
//
// Setup rows are written verbatim, timestamps included, so a scenario can
// describe states identify alone cannot reach (out-of-order ids, deleted
// primaries, broken links). Flow steps then go through engine.Identify.
//
// # Assertion Types
//
//   - row_count: total rows (soft-deleted included) and optionally active rows
//   - contact_state: one row's precedence, link, values or deleted flag
//   - invariants: engine.CheckInvariants finds nothing among active rows
//
// # Deterministic Testing
//
// Each scenario runs in a fresh in-memory database with a
// testutil.DeterministicClock, so ids and timestamps are identical across
// runs and the response sequence can be compared with a golden file.
package harness
