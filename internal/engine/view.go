package engine

import (
	"context"
	"fmt"

	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/store"
)

// BuildView reads the cluster of primaryID and assembles its canonical view.
//
// The primary's email and phone come first; the remaining values follow in
// cluster order with duplicates removed. SecondaryContactIDs lists every
// other member in cluster order.
//
// Returns store.ErrNotFound if primaryID is not an active contact.
func BuildView(ctx context.Context, contacts Contacts, primaryID int64) (ir.ContactView, error) {
	cluster, err := contacts.ListClusterOrderedByCreatedAt(ctx, primaryID)
	if err != nil {
		return ir.ContactView{}, fmt.Errorf("build view %d: %w", primaryID, err)
	}

	idx := -1
	for i, c := range cluster {
		if c.ID == primaryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ir.ContactView{}, store.ErrNotFound
	}
	primary := cluster[idx]

	var emails, phones OrderedSet[string]
	if primary.Email != nil {
		emails.Add(*primary.Email)
	}
	if primary.PhoneNumber != nil {
		phones.Add(*primary.PhoneNumber)
	}

	secondaries := []int64{}
	for _, c := range cluster {
		if c.ID == primaryID {
			continue
		}
		if c.Email != nil {
			emails.Add(*c.Email)
		}
		if c.PhoneNumber != nil {
			phones.Add(*c.PhoneNumber)
		}
		secondaries = append(secondaries, c.ID)
	}

	return ir.ContactView{
		PrimaryContactID:    primaryID,
		Emails:              emails.Values(),
		PhoneNumbers:        phones.Values(),
		SecondaryContactIDs: secondaries,
	}, nil
}
