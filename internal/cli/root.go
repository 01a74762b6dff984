// Package cli implements the idlink command line.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/idlink/internal/config"
	"github.com/roach88/idlink/internal/engine"
	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/logging"
	"github.com/roach88/idlink/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Database   string // overrides store.path when set
	DotEnv     string

	// Config is loaded by the root command before any subcommand runs.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the idlink CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "idlink",
		Version: ir.ServiceVersion,
		Short:   "idlink - contact identity reconciliation",
		Long: `idlink links contact records that share an email or phone number
into identity clusters and serves their consolidated view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides store.path)")
	cmd.PersistentFlags().StringVar(&opts.DotEnv, "env-file", ".env", "dotenv file loaded before the environment")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewIdentifyCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// prepare validates global flags and loads the configuration.
func (o *RootOptions) prepare() error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(config.LoadOptions{File: o.ConfigFile, DotEnv: o.DotEnv})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Store.Path = o.Database
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	o.Config = cfg
	return nil
}

// loadedConfig returns the loaded configuration, or the defaults when a
// subcommand runs without the root command (tests).
func (o *RootOptions) loadedConfig() *config.Config {
	if o.Config == nil {
		cfg := config.Default()
		if o.Database != "" {
			cfg.Store.Path = o.Database
		}
		o.Config = cfg
	}
	return o.Config
}

// newLogger builds the configured logger writing to w.
func (o *RootOptions) newLogger(w io.Writer) (*zap.Logger, error) {
	cfg := o.loadedConfig()
	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: w,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	return logger, nil
}

// openEngine opens the configured store and builds an engine on it.
// The caller must close the returned store.
func (o *RootOptions) openEngine(logger *zap.Logger) (*engine.Engine, *store.Store, error) {
	cfg := o.loadedConfig()
	st, err := store.Open(cfg.Store.Path, store.WithTxTimeout(cfg.Store.TxTimeout))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %s", cfg.Store.Path), err)
	}
	return engine.New(st, engine.WithLogger(logger)), st, nil
}

// withEngine runs fn with an engine on the configured store, logging to
// the command's stderr.
func (o *RootOptions) withEngine(cmd *cobra.Command, fn func(e *engine.Engine) error) error {
	logger, err := o.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	eng, st, err := o.openEngine(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(eng)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
