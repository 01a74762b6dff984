package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idlink/internal/engine"
)

// DeleteResult is the JSON payload of the delete command.
type DeleteResult struct {
	ContactID int64 `json:"contactId"`
	Deleted   bool  `json:"deleted"`
}

func (r DeleteResult) String() string {
	return fmt.Sprintf("contact %d deleted", r.ContactID)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <contact-id>",
		Short: "Soft-delete a contact",
		Long: `Mark a contact as deleted. Deleted contacts no longer match identify
requests and are left out of every view. The row itself is kept.

Deleting a primary leaves its secondaries without a primary; run
"idlink audit" to list them.

Examples:
  idlink delete 7 --db ./idlink.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseContactID(args[0])
			if err != nil {
				return err
			}
			return runDelete(rootOpts, cmd, id)
		},
	}
}

func runDelete(opts *RootOptions, cmd *cobra.Command, id int64) error {
	out := NewOutputFormatter(cmd, opts)

	return opts.withEngine(cmd, func(eng *engine.Engine) error {
		if err := eng.SoftDelete(cmd.Context(), id); err != nil {
			return failLookup(out, id, err)
		}
		return out.Success(DeleteResult{ContactID: id, Deleted: true})
	})
}
