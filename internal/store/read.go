package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/idlink/internal/ir"
)

const contactColumns = `id, email, phone_number, link_precedence, linked_id, created_at, updated_at, deleted_at`

// FindActiveByEmailOrPhone returns active contacts whose email equals email
// or whose phone number equals phone. A nil argument disables that
// condition; both nil yields an empty result.
//
// Each contact appears once even if it matches both conditions.
// Results are ordered by created_at ASC, id ASC.
func (t *Tx) FindActiveByEmailOrPhone(ctx context.Context, email, phone *string) ([]ir.Contact, error) {
	var (
		conds []string
		args  []any
	)
	if email != nil {
		conds = append(conds, "email = ?")
		args = append(args, *email)
	}
	if phone != nil {
		conds = append(conds, "phone_number = ?")
		args = append(args, *phone)
	}
	if len(conds) == 0 {
		return []ir.Contact{}, nil
	}

	query := `SELECT ` + contactColumns + `
		FROM contacts
		WHERE deleted_at IS NULL AND (` + strings.Join(conds, " OR ") + `)
		ORDER BY created_at ASC, id ASC`

	contacts, err := t.queryContacts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by email or phone: %w", err)
	}
	return contacts, nil
}

// FindByID retrieves a single active contact.
// Returns ErrNotFound if the contact does not exist or is soft-deleted.
func (t *Tx) FindByID(ctx context.Context, id int64) (ir.Contact, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = ? AND deleted_at IS NULL
	`, id)

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Contact{}, ErrNotFound
	}
	if err != nil {
		return ir.Contact{}, fmt.Errorf("find by id %d: %w", id, err)
	}
	return c, nil
}

// FindByLinkedID returns active contacts whose linked_id equals id,
// ordered by created_at ASC, id ASC.
func (t *Tx) FindByLinkedID(ctx context.Context, id int64) ([]ir.Contact, error) {
	contacts, err := t.queryContacts(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE linked_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("find by linked id %d: %w", id, err)
	}
	return contacts, nil
}

// ListClusterOrderedByCreatedAt returns the primary plus every active
// contact linked to it, ordered by created_at ASC, id ASC.
func (t *Tx) ListClusterOrderedByCreatedAt(ctx context.Context, primaryID int64) ([]ir.Contact, error) {
	contacts, err := t.queryContacts(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE deleted_at IS NULL AND (id = ? OR linked_id = ?)
		ORDER BY created_at ASC, id ASC
	`, primaryID, primaryID)
	if err != nil {
		return nil, fmt.Errorf("list cluster %d: %w", primaryID, err)
	}
	return contacts, nil
}

// ListActive returns every active contact ordered by created_at ASC, id ASC.
// Used by the audit scan.
func (t *Tx) ListActive(ctx context.Context) ([]ir.Contact, error) {
	contacts, err := t.queryContacts(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	return contacts, nil
}

// CountContacts returns the number of rows, including soft-deleted ones,
// and the number of active rows.
func (t *Tx) CountContacts(ctx context.Context) (total, active int, err error) {
	err = t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE deleted_at IS NULL)
		FROM contacts
	`).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count contacts: %w", err)
	}
	return total, active, nil
}

// queryContacts runs a multi-row contact query.
// Returns an empty slice (not nil) if no rows match.
func (t *Tx) queryContacts(ctx context.Context, query string, args ...any) ([]ir.Contact, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []ir.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(r rowScanner) (ir.Contact, error) {
	var (
		c          ir.Contact
		email      sql.NullString
		phone      sql.NullString
		precedence string
		linkedID   sql.NullInt64
		createdAt  int64
		updatedAt  int64
		deletedAt  sql.NullInt64
	)

	if err := r.Scan(&c.ID, &email, &phone, &precedence, &linkedID, &createdAt, &updatedAt, &deletedAt); err != nil {
		return ir.Contact{}, err
	}

	if email.Valid {
		c.Email = &email.String
	}
	if phone.Valid {
		c.PhoneNumber = &phone.String
	}
	c.LinkPrecedence = ir.LinkPrecedence(precedence)
	if linkedID.Valid {
		c.LinkedID = &linkedID.Int64
	}
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	if deletedAt.Valid {
		t := fromNanos(deletedAt.Int64)
		c.DeletedAt = &t
	}
	return c, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
