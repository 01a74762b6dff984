package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/idlink/internal/engine"
)

// AuditResult is the payload of the audit command.
type AuditResult struct {
	Violations []engine.Violation `json:"violations"`
}

func (r AuditResult) String() string {
	if len(r.Violations) == 0 {
		return "✓ No violations"
	}
	var b strings.Builder
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "✗ contact %d: %s (%s)\n", v.ContactID, v.Kind, v.Detail)
	}
	fmt.Fprintf(&b, "%d violation(s)", len(r.Violations))
	return b.String()
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check that every active contact belongs to a valid cluster",
		Long: `Scan all active contacts and report link violations:

  primary_linked      a primary with a linked_id
  secondary_unlinked  a secondary without a linked_id
  dangling_link       a secondary linked to a missing or deleted contact
  chained_link        a secondary linked to another secondary

Exit codes:
  0 - No violations
  1 - One or more violations
  2 - Command error (database unavailable, etc.)

Examples:
  idlink audit --db ./idlink.db
  idlink audit --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, cmd)
		},
	}
}

func runAudit(opts *RootOptions, cmd *cobra.Command) error {
	out := NewOutputFormatter(cmd, opts)

	return opts.withEngine(cmd, func(eng *engine.Engine) error {
		violations, err := eng.Audit(cmd.Context())
		if err != nil {
			return out.Fail(ExitCommandError, CodeStore, "audit failed", err.Error())
		}

		result := AuditResult{Violations: violations}
		if len(violations) == 0 {
			return out.Success(result)
		}

		msg := fmt.Sprintf("%d violation(s) found", len(violations))
		if opts.Format == "json" {
			return out.Fail(ExitFailure, CodeAuditFailed, msg, violations)
		}
		if err := out.Success(result); err != nil {
			return err
		}
		return &ExitError{Code: ExitFailure, Message: msg, reported: true}
	})
}
