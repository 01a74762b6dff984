package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/idlink/internal/ir"
)

// Create inserts a new contact and returns it with its assigned ID and
// timestamps. created_at and updated_at both come from the store clock.
func (t *Tx) Create(ctx context.Context, fields ir.NewContact) (ir.Contact, error) {
	if !fields.LinkPrecedence.Valid() {
		return ir.Contact{}, fmt.Errorf("create contact: invalid link precedence %q", fields.LinkPrecedence)
	}

	now := t.clock.Now().UTC()
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO contacts
		(email, phone_number, link_precedence, linked_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		fields.Email,
		fields.PhoneNumber,
		string(fields.LinkPrecedence),
		fields.LinkedID,
		toNanos(now),
		toNanos(now),
	)
	if err != nil {
		return ir.Contact{}, fmt.Errorf("create contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return ir.Contact{}, fmt.Errorf("create contact: last insert id: %w", err)
	}

	return ir.Contact{
		ID:             id,
		Email:          fields.Email,
		PhoneNumber:    fields.PhoneNumber,
		LinkPrecedence: fields.LinkPrecedence,
		LinkedID:       fields.LinkedID,
		CreatedAt:      fromNanos(toNanos(now)),
		UpdatedAt:      fromNanos(toNanos(now)),
	}, nil
}

// Update applies patch to an active contact and bumps updated_at.
// Returns ErrNotFound if the contact does not exist or is soft-deleted.
// An empty patch only bumps updated_at.
func (t *Tx) Update(ctx context.Context, id int64, patch ir.ContactPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{toNanos(t.clock.Now())}

	if patch.LinkPrecedence != nil {
		if !patch.LinkPrecedence.Valid() {
			return fmt.Errorf("update contact %d: invalid link precedence %q", id, *patch.LinkPrecedence)
		}
		sets = append(sets, "link_precedence = ?")
		args = append(args, string(*patch.LinkPrecedence))
	}
	if patch.LinkedID != nil {
		sets = append(sets, "linked_id = ?")
		args = append(args, *patch.LinkedID)
	}
	args = append(args, id)

	result, err := t.tx.ExecContext(ctx, `
		UPDATE contacts SET `+strings.Join(sets, ", ")+`
		WHERE id = ? AND deleted_at IS NULL
	`, args...)
	if err != nil {
		return fmt.Errorf("update contact %d: %w", id, err)
	}

	return requireOneRow(result, id)
}

// SoftDelete marks an active contact as deleted. The row stays in place but
// disappears from every contract read.
// Returns ErrNotFound if the contact does not exist or is already deleted.
func (t *Tx) SoftDelete(ctx context.Context, id int64) error {
	now := toNanos(t.clock.Now())
	result, err := t.tx.ExecContext(ctx, `
		UPDATE contacts SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete contact %d: %w", id, err)
	}

	return requireOneRow(result, id)
}

// Import writes a fully specified contact, timestamps included.
// Used to seed fixtures and scenario setup; a zero ID lets SQLite assign one.
// Zero UpdatedAt defaults to CreatedAt.
func (t *Tx) Import(ctx context.Context, c ir.Contact) (ir.Contact, error) {
	if !c.LinkPrecedence.Valid() {
		return ir.Contact{}, fmt.Errorf("import contact: invalid link precedence %q", c.LinkPrecedence)
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	var id any
	if c.ID != 0 {
		id = c.ID
	}
	var deletedAt any
	if c.DeletedAt != nil {
		deletedAt = toNanos(*c.DeletedAt)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO contacts
		(id, email, phone_number, link_precedence, linked_id, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		c.Email,
		c.PhoneNumber,
		string(c.LinkPrecedence),
		c.LinkedID,
		toNanos(c.CreatedAt),
		toNanos(c.UpdatedAt),
		deletedAt,
	)
	if err != nil {
		return ir.Contact{}, fmt.Errorf("import contact: %w", err)
	}

	if c.ID == 0 {
		if c.ID, err = result.LastInsertId(); err != nil {
			return ir.Contact{}, fmt.Errorf("import contact: last insert id: %w", err)
		}
	}
	c.CreatedAt = fromNanos(toNanos(c.CreatedAt))
	c.UpdatedAt = fromNanos(toNanos(c.UpdatedAt))
	if c.DeletedAt != nil {
		d := fromNanos(toNanos(*c.DeletedAt))
		c.DeletedAt = &d
	}
	return c, nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireOneRow(result rowsAffecter, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("contact %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
