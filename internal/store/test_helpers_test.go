package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/testutil"
)

// createTestStore creates a new file-backed store with a deterministic clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.NewDeterministicClock()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// inTx runs fn in a transaction and fails the test on error.
func inTx(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.InTx(ctx, func(tx *Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("InTx() failed: %v", err)
	}
}

// createPrimary inserts a primary contact through the contract Create.
func createPrimary(t *testing.T, s *Store, email, phone *string) ir.Contact {
	t.Helper()
	var c ir.Contact
	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		var err error
		c, err = tx.Create(ctx, ir.NewContact{
			Email:          email,
			PhoneNumber:    phone,
			LinkPrecedence: ir.LinkPrimary,
		})
		return err
	})
	return c
}

// createSecondary inserts a secondary contact linked to primaryID.
func createSecondary(t *testing.T, s *Store, primaryID int64, email, phone *string) ir.Contact {
	t.Helper()
	var c ir.Contact
	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		var err error
		c, err = tx.Create(ctx, ir.NewContact{
			Email:          email,
			PhoneNumber:    phone,
			LinkPrecedence: ir.LinkSecondary,
			LinkedID:       &primaryID,
		})
		return err
	})
	return c
}

func contactIDs(contacts []ir.Contact) []int64 {
	ids := make([]int64, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
