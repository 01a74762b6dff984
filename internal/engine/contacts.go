package engine

import (
	"context"

	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/store"
)

// Contacts is the store surface reconciliation runs against.
// Every read excludes soft-deleted contacts; FindByID returns
// store.ErrNotFound for missing or deleted ids.
type Contacts interface {
	FindActiveByEmailOrPhone(ctx context.Context, email, phone *string) ([]ir.Contact, error)
	FindByID(ctx context.Context, id int64) (ir.Contact, error)
	FindByLinkedID(ctx context.Context, id int64) ([]ir.Contact, error)
	Create(ctx context.Context, fields ir.NewContact) (ir.Contact, error)
	Update(ctx context.Context, id int64, patch ir.ContactPatch) error
	ListClusterOrderedByCreatedAt(ctx context.Context, primaryID int64) ([]ir.Contact, error)
}

var _ Contacts = (*store.Tx)(nil)
