package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/shakelines/internal/config"
	"github.com/copyleftdev/shakelines/internal/logging"
	"github.com/copyleftdev/shakelines/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run searches as jobs behind an HTTP and JSON-RPC API",
		Long: `Serve the job API until interrupted.

Settings come from the environment (HTTP_PORT, LOG_LEVEL, SHAKE_*).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "load configuration", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}
			if rootOpts.Verbose {
				cfg.Logging.Level = "debug"
			}

			logger, err := logging.NewLogger(&logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cfg.Logging.Output,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "initialize logger", err)
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.ListenAndServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default HTTP_PORT)")

	return cmd
}
