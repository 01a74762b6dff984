package harness

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/roach88/idlink/internal/engine"
	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/store"
	"github.com/roach88/idlink/internal/testutil"
)

// Harness is the scenario execution environment.
// It runs scenarios with a deterministic clock and request IDs.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	logger *zap.Logger
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger routes engine logs to l. Runs are silent by default.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Insert setup fixtures and move the clock past them
//  3. Send each flow step through engine.Identify, checking expect clauses
//  4. Snapshot the contacts table and evaluate assertions
//
// The returned error reports a broken environment (store failure, bad
// fixture); expectation mismatches are reported through Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		clock:  testutil.NewDeterministicClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(":memory:", store.WithClock(h.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h.store = st
	h.engine = engine.New(st,
		engine.WithLogger(h.logger),
		engine.WithRequestIDGenerator(testutil.NewFixedRequestIDGenerator(scenario.Name)),
	)

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	rows, err := loadContactRows(ctx, st.DB())
	if err != nil {
		return nil, err
	}
	result.Contacts = rows

	for _, msg := range EvaluateAssertions(ctx, h.engine, result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// executeSetup writes the fixtures in one transaction, then advances the
// clock past the latest fixture so flow-created contacts sort after them.
func (h *Harness) executeSetup(ctx context.Context, setup []ContactFixture) error {
	if len(setup) == 0 {
		return nil
	}

	var latest int64
	err := h.store.InTx(ctx, func(tx *store.Tx) error {
		latest = 0
		for i, f := range setup {
			at := f.At
			if at == 0 {
				at = int64(i + 1)
			}
			latest = max(latest, at)

			c := ir.Contact{
				ID:             f.ID,
				Email:          f.Email,
				PhoneNumber:    f.Phone,
				LinkPrecedence: ir.LinkPrecedence(f.Precedence),
				LinkedID:       f.LinkedID,
				CreatedAt:      testutil.At(at),
			}
			if f.Deleted {
				deletedAt := testutil.At(at)
				c.DeletedAt = &deletedAt
			}

			if _, err := tx.Import(ctx, c); err != nil {
				return fmt.Errorf("setup[%d]: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if d := latest - h.clock.Current(); d > 0 {
		h.clock.Advance(d)
	}
	h.logger.Debug("setup complete", zap.Int("fixtures", len(setup)), zap.Int64("clock", h.clock.Current()))
	return nil
}

// executeFlow sends each step through the engine and checks its expect
// clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		req := ir.IdentifyRequest{Email: step.Email}
		if step.Phone != nil {
			phone := ir.PhoneNumber(*step.Phone)
			req.PhoneNumber = &phone
		}
		q := req.Query()

		sr := StepResult{Email: q.Email, PhoneNumber: q.PhoneNumber}
		res, err := h.engine.Identify(ctx, q)
		switch {
		case err == nil:
			view := res.View
			sr.Contact = &view
		case engine.IsInvalidRequest(err):
			sr.Error = string(engine.CodeOf(err))
		default:
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		result.AddStep(sr)

		if msg := checkExpect(i, step.Expect, sr); msg != "" {
			result.AddError(msg)
		}

		h.logger.Debug("flow step completed",
			zap.Int("step", i),
			zap.Bool("ok", sr.Contact != nil),
		)
	}
	return nil
}

// checkExpect compares one step outcome with its expect clause.
// Returns "" on a match or when there is nothing to check.
func checkExpect(i int, expect *ExpectClause, got StepResult) string {
	if expect == nil {
		return ""
	}

	if expect.Error != "" {
		if got.Error != expect.Error {
			return fmt.Sprintf("flow[%d]: expected error %s, got %s", i, expect.Error, describe(got))
		}
		return ""
	}

	if got.Contact == nil {
		return fmt.Sprintf("flow[%d]: expected a contact, got error %s", i, got.Error)
	}
	if diff := cmp.Diff(expect.Contact.View(), *got.Contact); diff != "" {
		return fmt.Sprintf("flow[%d]: contact mismatch (-want +got):\n%s", i, diff)
	}
	return ""
}

func describe(s StepResult) string {
	if s.Error != "" {
		return "error " + s.Error
	}
	return fmt.Sprintf("contact %d", s.Contact.PrimaryContactID)
}

// loadContactRows reads the whole contacts table, soft-deleted rows
// included, ordered by id.
func loadContactRows(ctx context.Context, db *sql.DB) ([]ContactRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, email, phone_number, link_precedence, linked_id, deleted_at
		FROM contacts
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	out := []ContactRow{}
	for rows.Next() {
		var (
			row       ContactRow
			email     sql.NullString
			phone     sql.NullString
			linkedID  sql.NullInt64
			deletedAt sql.NullInt64
		)
		if err := rows.Scan(&row.ID, &email, &phone, &row.LinkPrecedence, &linkedID, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		if email.Valid {
			row.Email = &email.String
		}
		if phone.Valid {
			row.PhoneNumber = &phone.String
		}
		if linkedID.Valid {
			row.LinkedID = &linkedID.Int64
		}
		row.Deleted = deletedAt.Valid
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return out, nil
}
