// File: cmd/serve.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/internal/observability"
	"github.com/xkilldash9x/planpilot-cli/internal/server"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP endpoint that executes submitted plans",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-resolve so the flag override lands in the config.
			cfg.Server.Addr = viper.GetString("server.addr")

			c, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				c.Shutdown(ctx)
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer c.Shutdown(ctx)

			var history server.RunHistory
			if c.Store != nil {
				history = c.Store
			}

			srv := server.New(cfg.Server, c.Runner, history, logger)

			logger.Info("Serving plan launch endpoint",
				zap.String("addr", cfg.Server.Addr),
				zap.Bool("run_history", history != nil),
			)
			return srv.Start(ctx)
		},
	}

	serveCmd.Flags().String("addr", ":8080", "Listen address for the HTTP server. (Overrides config/env)")

	return serveCmd
}
