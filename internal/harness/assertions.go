package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/idlink/internal/engine"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// Auditor reports invariant violations among active contacts.
// Implemented by *engine.Engine.
type Auditor interface {
	Audit(ctx context.Context) ([]engine.Violation, error)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, auditor Auditor, result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRowCount:
			err = assertRowCount(result.Contacts, assertion)
		case AssertContactState:
			err = assertContactState(result.Contacts, assertion)
		case AssertInvariants:
			err = assertInvariants(ctx, auditor)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertRowCount checks the number of rows, and of active rows.
func assertRowCount(rows []ContactRow, a Assertion) error {
	active := 0
	for _, r := range rows {
		if !r.Deleted {
			active++
		}
	}

	if a.Total != nil && *a.Total != len(rows) {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows", *a.Total),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
		}
	}
	if a.Active != nil && *a.Active != active {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d active rows", *a.Active),
			Actual:   fmt.Sprintf("%d active rows", active),
		}
	}
	return nil
}

// assertContactState checks the expected fields of one row.
// Only fields set in the expectation are compared.
func assertContactState(rows []ContactRow, a Assertion) error {
	var row *ContactRow
	for i := range rows {
		if rows[i].ID == a.ID {
			row = &rows[i]
			break
		}
	}
	if row == nil {
		return &AssertionError{
			Type:     AssertContactState,
			Expected: fmt.Sprintf("contact %d", a.ID),
			Actual:   "row not found",
		}
	}

	exp := a.Expect
	mismatch := func(field string, want, got any) error {
		return &AssertionError{
			Type:     AssertContactState,
			Expected: fmt.Sprintf("contact %d %s = %v", a.ID, field, want),
			Actual:   fmt.Sprintf("contact %d %s = %v", a.ID, field, got),
		}
	}

	if exp.Precedence != "" && exp.Precedence != row.LinkPrecedence {
		return mismatch("precedence", exp.Precedence, row.LinkPrecedence)
	}
	if exp.LinkedID != nil && !ptrEqual(exp.LinkedID, row.LinkedID) {
		return mismatch("linked_id", *exp.LinkedID, format(row.LinkedID))
	}
	if exp.Email != nil && !ptrEqual(exp.Email, row.Email) {
		return mismatch("email", *exp.Email, format(row.Email))
	}
	if exp.Phone != nil && !ptrEqual(exp.Phone, row.PhoneNumber) {
		return mismatch("phone", *exp.Phone, format(row.PhoneNumber))
	}
	if exp.Deleted != nil && *exp.Deleted != row.Deleted {
		return mismatch("deleted", *exp.Deleted, row.Deleted)
	}
	return nil
}

// assertInvariants checks that the active contacts form valid clusters.
func assertInvariants(ctx context.Context, auditor Auditor) error {
	violations, err := auditor.Audit(ctx)
	if err != nil {
		return fmt.Errorf("invariants: %w", err)
	}
	if len(violations) == 0 {
		return nil
	}

	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("contact %d %s (%s)", v.ContactID, v.Kind, v.Detail))
	}
	return &AssertionError{
		Type:     AssertInvariants,
		Expected: "no violations",
		Actual:   strings.Join(parts, "; "),
	}
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func format[T any](p *T) string {
	if p == nil {
		return "null"
	}
	return fmt.Sprint(*p)
}
