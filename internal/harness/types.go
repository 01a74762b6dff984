package harness

import "github.com/roach88/idlink/internal/ir"

// StepResult is the recorded outcome of one flow step.
type StepResult struct {
	Email       *string         `json:"email"`
	PhoneNumber *string         `json:"phoneNumber"`
	Contact     *ir.ContactView `json:"contact,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ContactRow is a contacts table row without timestamps.
type ContactRow struct {
	ID             int64   `json:"id"`
	Email          *string `json:"email"`
	PhoneNumber    *string `json:"phoneNumber"`
	LinkPrecedence string  `json:"linkPrecedence"`
	LinkedID       *int64  `json:"linkedId"`
	Deleted        bool    `json:"deleted"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Steps holds one entry per flow step, in order.
	Steps []StepResult `json:"steps"`

	// Contacts is the final contacts table ordered by id.
	Contacts []ContactRow `json:"contacts"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Steps:    []StepResult{},
		Contacts: []ContactRow{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records a flow step outcome.
func (r *Result) AddStep(step StepResult) {
	r.Steps = append(r.Steps, step)
}
