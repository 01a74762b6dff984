package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/idlink/internal/logging"
	"github.com/roach88/idlink/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides server.host and server.port

	// listener replaces Addr when set (tests).
	listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the idlink HTTP server.

Routes:
  POST /identify       resolve an email and/or phone number
  GET  /contacts/{id}  view the cluster containing a contact
  GET  /health         liveness and contact counts
  GET  /metrics        Prometheus metrics

The server stops gracefully on SIGINT or SIGTERM.

Examples:
  idlink serve --db ./idlink.db
  idlink serve --addr 127.0.0.1:8080 --config ./idlink.yaml
  IDLINK_SERVER_PORT=9000 idlink serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.host and server.port)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.loadedConfig()

	logger, err := opts.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	eng, st, err := opts.openEngine(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srvCfg := &server.Config{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if opts.Addr != "" {
		srvCfg.Addr = opts.Addr
	}
	if cfg.RateLimit.Enabled {
		srvCfg.RateLimit = server.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		}
	}

	srv, err := server.New(eng, logger, srvCfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create server", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if opts.listener != nil {
			err = srv.Serve(opts.listener)
		} else {
			err = srv.Start()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped")
	return nil
}
