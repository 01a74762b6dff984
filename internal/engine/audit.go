package engine

import (
	"context"
	"fmt"

	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/store"
)

// ViolationKind names a broken cluster invariant.
type ViolationKind string

const (
	// ViolationPrimaryLinked is a primary with a linked_id.
	ViolationPrimaryLinked ViolationKind = "primary_linked"

	// ViolationSecondaryUnlinked is a secondary without a linked_id.
	ViolationSecondaryUnlinked ViolationKind = "secondary_unlinked"

	// ViolationDanglingLink is a secondary whose target is missing or
	// soft-deleted.
	ViolationDanglingLink ViolationKind = "dangling_link"

	// ViolationChainedLink is a secondary linked to another secondary.
	ViolationChainedLink ViolationKind = "chained_link"
)

// Violation is one contact breaking a cluster invariant.
type Violation struct {
	ContactID int64         `json:"contactId"`
	Kind      ViolationKind `json:"kind"`
	Detail    string        `json:"detail"`
}

// Audit checks every active contact against the link invariants and
// returns the violations in cluster order. An empty result means the store
// is consistent.
func (e *Engine) Audit(ctx context.Context) ([]Violation, error) {
	var active []ir.Contact
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		active, err = tx.ListActive(ctx)
		return err
	})
	if err != nil {
		return nil, classify(e.requestLogger(ctx), "audit", err)
	}
	return CheckInvariants(active), nil
}

// CheckInvariants returns the link violations among contacts, which must
// be the complete set of active contacts.
func CheckInvariants(contacts []ir.Contact) []Violation {
	byID := make(map[int64]ir.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	violations := []Violation{}
	for _, c := range contacts {
		switch {
		case c.IsPrimary() && c.LinkedID != nil:
			violations = append(violations, Violation{
				ContactID: c.ID,
				Kind:      ViolationPrimaryLinked,
				Detail:    fmt.Sprintf("primary links to %d", *c.LinkedID),
			})
		case !c.IsPrimary() && c.LinkedID == nil:
			violations = append(violations, Violation{
				ContactID: c.ID,
				Kind:      ViolationSecondaryUnlinked,
				Detail:    "secondary has no linked_id",
			})
		case !c.IsPrimary():
			target, ok := byID[*c.LinkedID]
			if !ok {
				violations = append(violations, Violation{
					ContactID: c.ID,
					Kind:      ViolationDanglingLink,
					Detail:    fmt.Sprintf("linked contact %d is missing or deleted", *c.LinkedID),
				})
			} else if !target.IsPrimary() {
				violations = append(violations, Violation{
					ContactID: c.ID,
					Kind:      ViolationChainedLink,
					Detail:    fmt.Sprintf("linked contact %d is a secondary", target.ID),
				})
			}
		}
	}
	return violations
}
