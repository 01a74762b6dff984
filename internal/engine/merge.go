package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/idlink/internal/ir"
)

// Outcome records what Reconcile changed.
type Outcome struct {
	// PrimaryID is the canonical primary of the query's cluster.
	PrimaryID int64

	// Created is the contact inserted by this request, if any.
	// Its LinkPrecedence tells a fresh primary from a new-info secondary.
	Created *ir.Contact

	// Demoted lists former primaries absorbed into PrimaryID.
	Demoted []int64

	// Relinked lists secondaries moved from a demoted primary to PrimaryID.
	Relinked []int64
}

// Changed reports whether Reconcile wrote anything.
func (o Outcome) Changed() bool {
	return o.Created != nil || len(o.Demoted) > 0 || len(o.Relinked) > 0
}

// Reconcile mutates the store until q's cluster is consistent and returns
// the canonical primary id.
//
//   - No primaries: q becomes a new primary.
//   - One or more: the earliest primary survives, the rest are demoted to
//     secondaries of it and their secondaries are relinked to it. If q
//     then carries an email or phone not present anywhere in the cluster,
//     a secondary holding exactly q's fields is added.
//
// Replaying the same query is a no-op.
func Reconcile(ctx context.Context, contacts Contacts, q ir.Query, primaries []ir.Contact) (Outcome, error) {
	if len(primaries) == 0 {
		created, err := contacts.Create(ctx, ir.NewContact{
			Email:          q.Email,
			PhoneNumber:    q.PhoneNumber,
			LinkPrecedence: ir.LinkPrimary,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("create primary: %w", err)
		}
		return Outcome{PrimaryID: created.ID, Created: &created}, nil
	}

	ordered := slices.Clone(primaries)
	sortClusterOrder(ordered)
	survivor := ordered[0]

	out := Outcome{PrimaryID: survivor.ID}
	for _, other := range ordered[1:] {
		relinked, err := absorb(ctx, contacts, survivor.ID, other.ID)
		if err != nil {
			return Outcome{}, err
		}
		out.Demoted = append(out.Demoted, other.ID)
		out.Relinked = append(out.Relinked, relinked...)
	}

	created, err := addNewInfo(ctx, contacts, q, survivor.ID)
	if err != nil {
		return Outcome{}, err
	}
	out.Created = created
	return out, nil
}

// absorb demotes primary otherID under survivorID and moves its
// secondaries along so no chain is left behind.
func absorb(ctx context.Context, contacts Contacts, survivorID, otherID int64) ([]int64, error) {
	secondary := ir.LinkSecondary
	if err := contacts.Update(ctx, otherID, ir.ContactPatch{
		LinkPrecedence: &secondary,
		LinkedID:       &survivorID,
	}); err != nil {
		return nil, fmt.Errorf("demote primary %d: %w", otherID, err)
	}

	children, err := contacts.FindByLinkedID(ctx, otherID)
	if err != nil {
		return nil, fmt.Errorf("list secondaries of %d: %w", otherID, err)
	}

	relinked := make([]int64, 0, len(children))
	for _, child := range children {
		if err := contacts.Update(ctx, child.ID, ir.ContactPatch{LinkedID: &survivorID}); err != nil {
			return nil, fmt.Errorf("relink contact %d: %w", child.ID, err)
		}
		relinked = append(relinked, child.ID)
	}
	return relinked, nil
}

// addNewInfo creates a secondary under primaryID when q supplies a value
// the cluster does not already hold. Absent query fields stay absent.
func addNewInfo(ctx context.Context, contacts Contacts, q ir.Query, primaryID int64) (*ir.Contact, error) {
	cluster, err := contacts.ListClusterOrderedByCreatedAt(ctx, primaryID)
	if err != nil {
		return nil, fmt.Errorf("list cluster %d: %w", primaryID, err)
	}

	var emails, phones OrderedSet[string]
	for _, c := range cluster {
		if c.Email != nil {
			emails.Add(*c.Email)
		}
		if c.PhoneNumber != nil {
			phones.Add(*c.PhoneNumber)
		}
	}

	newEmail := q.Email != nil && !emails.Contains(*q.Email)
	newPhone := q.PhoneNumber != nil && !phones.Contains(*q.PhoneNumber)
	if !newEmail && !newPhone {
		return nil, nil
	}

	created, err := contacts.Create(ctx, ir.NewContact{
		Email:          q.Email,
		PhoneNumber:    q.PhoneNumber,
		LinkPrecedence: ir.LinkSecondary,
		LinkedID:       &primaryID,
	})
	if err != nil {
		return nil, fmt.Errorf("create secondary: %w", err)
	}
	return &created, nil
}
