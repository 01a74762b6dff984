package engine

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/store"
	"github.com/roach88/idlink/internal/testutil"
)

// memContacts is an in-memory Contacts for exercising the core without
// SQLite. It honors the same soft-delete and ordering rules as the store.
type memContacts struct {
	rows   map[int64]*ir.Contact
	nextID int64
	clock  *testutil.DeterministicClock

	// failOn makes the named method return errFake.
	failOn string

	creates int
	updates int
}

var errFake = errors.New("fake store failure")

func newMemContacts() *memContacts {
	return &memContacts{
		rows:   make(map[int64]*ir.Contact),
		nextID: 1,
		clock:  testutil.NewDeterministicClock(),
	}
}

// seed inserts c verbatim. A zero ID is assigned; a zero CreatedAt takes the
// next clock tick.
func (m *memContacts) seed(c ir.Contact) ir.Contact {
	if c.ID == 0 {
		c.ID = m.nextID
	}
	if c.ID >= m.nextID {
		m.nextID = c.ID + 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.clock.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	stored := c
	m.rows[c.ID] = &stored
	return c
}

func (m *memContacts) primary(email, phone *string) ir.Contact {
	return m.seed(ir.Contact{Email: email, PhoneNumber: phone, LinkPrecedence: ir.LinkPrimary})
}

func (m *memContacts) secondary(linkedID int64, email, phone *string) ir.Contact {
	return m.seed(ir.Contact{Email: email, PhoneNumber: phone, LinkPrecedence: ir.LinkSecondary, LinkedID: &linkedID})
}

func (m *memContacts) delete(id int64) {
	t := m.clock.Now()
	m.rows[id].DeletedAt = &t
}

func (m *memContacts) get(id int64) ir.Contact {
	return *m.rows[id]
}

func (m *memContacts) all() []ir.Contact {
	out := []ir.Contact{}
	for _, c := range m.rows {
		out = append(out, *c)
	}
	sortClusterOrder(out)
	return out
}

func (m *memContacts) active(match func(ir.Contact) bool) []ir.Contact {
	out := []ir.Contact{}
	for _, c := range m.rows {
		if c.Active() && match(*c) {
			out = append(out, *c)
		}
	}
	sortClusterOrder(out)
	return out
}

func (m *memContacts) FindActiveByEmailOrPhone(_ context.Context, email, phone *string) ([]ir.Contact, error) {
	if m.failOn == "FindActiveByEmailOrPhone" {
		return nil, errFake
	}
	return m.active(func(c ir.Contact) bool {
		return (email != nil && c.Email != nil && *c.Email == *email) ||
			(phone != nil && c.PhoneNumber != nil && *c.PhoneNumber == *phone)
	}), nil
}

func (m *memContacts) FindByID(_ context.Context, id int64) (ir.Contact, error) {
	if m.failOn == "FindByID" {
		return ir.Contact{}, errFake
	}
	c, ok := m.rows[id]
	if !ok || !c.Active() {
		return ir.Contact{}, store.ErrNotFound
	}
	return *c, nil
}

func (m *memContacts) FindByLinkedID(_ context.Context, id int64) ([]ir.Contact, error) {
	if m.failOn == "FindByLinkedID" {
		return nil, errFake
	}
	return m.active(func(c ir.Contact) bool {
		return c.LinkedID != nil && *c.LinkedID == id
	}), nil
}

func (m *memContacts) Create(_ context.Context, fields ir.NewContact) (ir.Contact, error) {
	if m.failOn == "Create" {
		return ir.Contact{}, errFake
	}
	m.creates++
	return m.seed(ir.Contact{
		Email:          fields.Email,
		PhoneNumber:    fields.PhoneNumber,
		LinkPrecedence: fields.LinkPrecedence,
		LinkedID:       fields.LinkedID,
	}), nil
}

func (m *memContacts) Update(_ context.Context, id int64, patch ir.ContactPatch) error {
	if m.failOn == "Update" {
		return errFake
	}
	c, ok := m.rows[id]
	if !ok || !c.Active() {
		return store.ErrNotFound
	}
	m.updates++
	if patch.LinkPrecedence != nil {
		c.LinkPrecedence = *patch.LinkPrecedence
	}
	if patch.LinkedID != nil {
		linked := *patch.LinkedID
		c.LinkedID = &linked
	}
	c.UpdatedAt = m.clock.Now()
	return nil
}

func (m *memContacts) ListClusterOrderedByCreatedAt(_ context.Context, primaryID int64) ([]ir.Contact, error) {
	if m.failOn == "ListClusterOrderedByCreatedAt" {
		return nil, errFake
	}
	return m.active(func(c ir.Contact) bool {
		return c.ID == primaryID || (c.LinkedID != nil && *c.LinkedID == primaryID)
	}), nil
}

// identify runs the full pipeline against m, the way Engine.Identify does
// inside a transaction.
func (m *memContacts) identify(ctx context.Context, q ir.Query) (ir.ContactView, error) {
	candidates, err := m.FindActiveByEmailOrPhone(ctx, q.Email, q.PhoneNumber)
	if err != nil {
		return ir.ContactView{}, err
	}
	res, err := Resolve(ctx, m, candidates)
	if err != nil {
		return ir.ContactView{}, err
	}
	out, err := Reconcile(ctx, m, q, res.Primaries)
	if err != nil {
		return ir.ContactView{}, err
	}
	return BuildView(ctx, m, out.PrimaryID)
}

// at returns a CreatedAt n ticks after the clock epoch.
func at(n int64) time.Time {
	return testutil.At(n)
}

func ids(contacts []ir.Contact) []int64 {
	out := make([]int64, len(contacts))
	for i, c := range contacts {
		out[i] = c.ID
	}
	return out
}
