package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/idlink/internal/engine"
	"github.com/roach88/idlink/internal/ir"
)

const msgMissingIdentifier = "either --email or --phone must be provided"

// IdentifyOptions holds flags for the identify command.
type IdentifyOptions struct {
	*RootOptions
	Email string
	Phone string
}

// NewIdentifyCommand creates the identify command.
func NewIdentifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IdentifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Resolve an email and/or phone number to its contact cluster",
		Long: `Run one identify request directly against the database.

Behaves exactly like POST /identify: unknown values create a primary,
new values on a known cluster add a secondary, and values spanning two
clusters merge them under the older primary.

Examples:
  idlink identify --db ./idlink.db --email doc@hillvalley.edu
  idlink identify --email doc@hillvalley.edu --phone 123456 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")

	return cmd
}

func runIdentify(opts *IdentifyOptions, cmd *cobra.Command) error {
	out := NewOutputFormatter(cmd, opts.RootOptions)

	req := ir.IdentifyRequest{}
	if cmd.Flags().Changed("email") {
		req.Email = &opts.Email
	}
	if cmd.Flags().Changed("phone") {
		phone := ir.PhoneNumber(opts.Phone)
		req.PhoneNumber = &phone
	}

	query := req.Query()
	if query.Empty() {
		return out.Fail(ExitCommandError, CodeInvalidRequest, msgMissingIdentifier, nil)
	}

	return opts.withEngine(cmd, func(eng *engine.Engine) error {
		res, err := eng.Identify(cmd.Context(), query)
		switch {
		case err == nil:
		case engine.IsInvalidRequest(err):
			return out.Fail(ExitCommandError, CodeInvalidRequest, msgMissingIdentifier, nil)
		default:
			return out.Fail(ExitFailure, CodeStore, "identify failed", err.Error())
		}

		out.VerboseLog("request %s: created=%t demoted=%v relinked=%v",
			res.RequestID, res.Outcome.Created != nil, res.Outcome.Demoted, res.Outcome.Relinked)

		if opts.Format == "json" {
			return out.SuccessWithRequestID(ir.IdentifyResponse{Contact: res.View}, res.RequestID)
		}
		return out.Success(viewText(res.View))
	})
}
