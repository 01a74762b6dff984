package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/idlink/internal/engine"
	"github.com/roach88/idlink/internal/ir"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <contact-id>",
		Short: "Show the cluster containing a contact",
		Long: `Print the consolidated view of the cluster containing the given
contact, which may be the primary or any of its secondaries. Read-only.

Examples:
  idlink show 1
  idlink show 23 --db ./idlink.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseContactID(args[0])
			if err != nil {
				return err
			}
			return runShow(rootOpts, cmd, id)
		},
	}
}

func runShow(opts *RootOptions, cmd *cobra.Command, id int64) error {
	out := NewOutputFormatter(cmd, opts)

	return opts.withEngine(cmd, func(eng *engine.Engine) error {
		view, err := eng.Cluster(cmd.Context(), id)
		if err != nil {
			return failLookup(out, id, err)
		}

		if opts.Format == "json" {
			return out.Success(ir.IdentifyResponse{Contact: view})
		}
		return out.Success(viewText(view))
	})
}

// parseContactID parses a positive contact id argument.
func parseContactID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid contact id %q", arg))
	}
	return id, nil
}

// failLookup reports an engine error for a single-contact command.
func failLookup(out *OutputFormatter, id int64, err error) error {
	switch {
	case engine.IsNotFound(err):
		return out.Fail(ExitFailure, CodeNotFound, fmt.Sprintf("contact %d not found", id), nil)
	case engine.IsBrokenLink(err):
		return out.Fail(ExitFailure, CodeBrokenLink, fmt.Sprintf("contact %d does not resolve to a primary", id), nil)
	default:
		return out.Fail(ExitFailure, CodeStore, fmt.Sprintf("lookup of contact %d failed", id), err.Error())
	}
}
