package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turbobackend/mcpbridge/internal/app"
	"github.com/turbobackend/mcpbridge/internal/config"
)

// NewServeCommand creates the serve command: it loads configuration from the
// environment and runs the bridge until interrupted.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server",
		Long: `Run the bridge server.

Configuration comes from MCPBRIDGE_* environment variables:
  MCPBRIDGE_HTTP_ADDR            listen address (default 127.0.0.1:8080)
  MCPBRIDGE_AUTH_TOKEN           bearer token; empty disables auth
  MCPBRIDGE_LEDGER_PATH          SQLite ledger path (default mcpbridge.db)
  MCPBRIDGE_SHUTDOWN_TIMEOUT     graceful shutdown window (default 5s)
  MCPBRIDGE_STREAM_IDLE_TIMEOUT  per-stream idle cutoff; 0 disables`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newServeLogger(cmd.ErrOrStderr(), rootOpts.Verbose)

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- application.Start()
	}()
	logger.Info("bridge listening", "addr", cfg.HTTPAddr)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	if err := <-serverErrCh; err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	logger.Info("bridge stopped")
	return nil
}
