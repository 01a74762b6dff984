package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/idlink/internal/engine"
	"github.com/roach88/idlink/internal/ir"
)

// Scenario defines a reconciliation test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup rows are inserted before the flow, in order.
	Setup []ContactFixture `yaml:"setup,omitempty"`

	// Flow holds identify requests with optional expected responses.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final table state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ContactFixture is a contact row written directly to the store.
type ContactFixture struct {
	ID         int64   `yaml:"id"`
	Email      *string `yaml:"email,omitempty"`
	Phone      *string `yaml:"phone,omitempty"`
	Precedence string  `yaml:"precedence"`
	LinkedID   *int64  `yaml:"linked_id,omitempty"`

	// At is the created_at clock tick. Zero means the fixture's position
	// in the setup list (1-based).
	At int64 `yaml:"at,omitempty"`

	Deleted bool `yaml:"deleted,omitempty"`
}

// FlowStep is one identify request.
type FlowStep struct {
	Email *string `yaml:"email,omitempty"`
	Phone *string `yaml:"phone,omitempty"`

	// Expect is validated against the response. Nil skips validation.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause holds either an expected contact view or an expected
// engine error code, never both.
type ExpectClause struct {
	Contact *ExpectedView `yaml:"contact,omitempty"`
	Error   string        `yaml:"error,omitempty"`
}

// ExpectedView is the YAML form of ir.ContactView.
type ExpectedView struct {
	PrimaryContactID    int64    `yaml:"primaryContactId"`
	Emails              []string `yaml:"emails"`
	PhoneNumbers        []string `yaml:"phoneNumbers"`
	SecondaryContactIDs []int64  `yaml:"secondaryContactIds"`
}

// View converts e to an ir.ContactView with empty, never nil, slices.
func (e ExpectedView) View() ir.ContactView {
	v := ir.ContactView{
		PrimaryContactID:    e.PrimaryContactID,
		Emails:              e.Emails,
		PhoneNumbers:        e.PhoneNumbers,
		SecondaryContactIDs: e.SecondaryContactIDs,
	}
	if v.Emails == nil {
		v.Emails = []string{}
	}
	if v.PhoneNumbers == nil {
		v.PhoneNumbers = []string{}
	}
	if v.SecondaryContactIDs == nil {
		v.SecondaryContactIDs = []int64{}
	}
	return v
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of row_count, contact_state, invariants.
	Type string `yaml:"type"`

	// Total is the expected row count including soft-deleted rows (row_count).
	Total *int `yaml:"total,omitempty"`

	// Active is the expected count of active rows (row_count).
	Active *int `yaml:"active,omitempty"`

	// ID selects the row (contact_state).
	ID int64 `yaml:"id,omitempty"`

	// Expect lists the fields to check (contact_state). Unset fields are
	// not checked.
	Expect *ContactExpect `yaml:"expect,omitempty"`
}

// ContactExpect is a subset match against one contact row.
type ContactExpect struct {
	Precedence string  `yaml:"precedence,omitempty"`
	LinkedID   *int64  `yaml:"linked_id,omitempty"`
	Email      *string `yaml:"email,omitempty"`
	Phone      *string `yaml:"phone,omitempty"`
	Deleted    *bool   `yaml:"deleted,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount     = "row_count"
	AssertContactState = "contact_state"
	AssertInvariants   = "invariants"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	seen := make(map[int64]bool, len(s.Setup))
	for i, f := range s.Setup {
		if f.ID <= 0 {
			return fmt.Errorf("setup[%d]: id must be positive", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("setup[%d]: duplicate id %d", i, f.ID)
		}
		if !ir.LinkPrecedence(f.Precedence).Valid() {
			return fmt.Errorf("setup[%d]: precedence must be primary or secondary, got %q", i, f.Precedence)
		}
		if f.LinkedID != nil && !seen[*f.LinkedID] {
			return fmt.Errorf("setup[%d]: linked_id %d must name an earlier fixture", i, *f.LinkedID)
		}
		if f.At < 0 {
			return fmt.Errorf("setup[%d]: at must be non-negative", i)
		}
		seen[f.ID] = true
	}

	for i, step := range s.Flow {
		if step.Expect == nil {
			continue
		}
		hasContact := step.Expect.Contact != nil
		hasError := step.Expect.Error != ""
		if hasContact == hasError {
			return fmt.Errorf("flow[%d].expect: exactly one of contact or error is required", i)
		}
		if hasError && !knownErrorCode(step.Expect.Error) {
			return fmt.Errorf("flow[%d].expect: unknown error code %q", i, step.Expect.Error)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func knownErrorCode(code string) bool {
	return engine.ErrorCode(code) == engine.ErrCodeInvalidRequest
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRowCount:
		if a.Total == nil && a.Active == nil {
			return fmt.Errorf("assertions[%d]: total or active is required for row_count", index)
		}
	case AssertContactState:
		if a.ID <= 0 {
			return fmt.Errorf("assertions[%d]: id is required for contact_state", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for contact_state", index)
		}
	case AssertInvariants:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
