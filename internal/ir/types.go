package ir

import "time"

// LinkPrecedence is the role of a contact within its identity cluster.
type LinkPrecedence string

const (
	// LinkPrimary marks the canonical representative of a cluster.
	LinkPrimary LinkPrecedence = "primary"

	// LinkSecondary marks a contact merged into a cluster via LinkedID.
	LinkSecondary LinkPrecedence = "secondary"
)

// Valid reports whether p is one of the known precedence values.
func (p LinkPrecedence) Valid() bool {
	return p == LinkPrimary || p == LinkSecondary
}

// Contact is one recorded fact-set about a person.
//
// Email and PhoneNumber are nil when absent. LinkedID is set only on
// secondary contacts and always points directly at a primary.
type Contact struct {
	ID             int64          `json:"id"`
	Email          *string        `json:"email"`
	PhoneNumber    *string        `json:"phoneNumber"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence"`
	LinkedID       *int64         `json:"linkedId"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      *time.Time     `json:"deletedAt,omitempty"`
}

// IsPrimary reports whether c is the primary of its cluster.
func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrimary
}

// Active reports whether c has not been soft-deleted.
func (c Contact) Active() bool {
	return c.DeletedAt == nil
}

// Before reports whether c sorts before o in cluster order:
// CreatedAt ascending, ID ascending on ties.
func (c Contact) Before(o Contact) bool {
	if !c.CreatedAt.Equal(o.CreatedAt) {
		return c.CreatedAt.Before(o.CreatedAt)
	}
	return c.ID < o.ID
}

// NewContact holds the fields of a contact about to be created.
// The store assigns ID and timestamps.
type NewContact struct {
	Email          *string
	PhoneNumber    *string
	LinkPrecedence LinkPrecedence
	LinkedID       *int64
}

// ContactPatch holds the mutable fields of a contact. Nil fields are left
// unchanged.
type ContactPatch struct {
	LinkPrecedence *LinkPrecedence
	LinkedID       *int64
}

// Query is a normalized identify request. At least one field must be set.
type Query struct {
	Email       *string
	PhoneNumber *string
}

// Empty reports whether q carries no identifying field.
func (q Query) Empty() bool {
	return q.Email == nil && q.PhoneNumber == nil
}

// ContactView is the canonical view of one identity cluster.
// Slices are never nil so they always encode as JSON arrays.
type ContactView struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

// IdentifyResponse is the response body of POST /identify.
type IdentifyResponse struct {
	Contact ContactView `json:"contact"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
