// File: cmd/run.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/api/schemas"
	"github.com/xkilldash9x/planpilot-cli/internal/observability"
	"github.com/xkilldash9x/planpilot-cli/internal/reporting"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Executes a plan document against a fresh browser session",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			planPath := args[0]
			data, err := os.ReadFile(planPath)
			if err != nil {
				return fmt.Errorf("failed to read plan file: %w", err)
			}
			plan, err := schemas.DecodePlan(data)
			if err != nil {
				return err
			}

			logger.Info("Loaded plan",
				zap.String("path", planPath),
				zap.String("goal", plan.Goal),
				zap.Int("steps", len(plan.Steps)),
			)

			c, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				c.Shutdown(ctx)
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer c.Shutdown(ctx)

			report, err := c.Runner.Run(ctx, plan)
			if err != nil {
				return err
			}

			reporter, err := reporting.New(viper.GetString("format"), viper.GetString("output"), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := reporter.Close(); err != nil {
					logger.Error("Failed to close reporter", zap.Error(err))
				}
			}()

			if err := reporter.Write(report, plan.FinalReport); err != nil {
				return err
			}

			// The report itself is always well formed; a step failure still
			// surfaces as a non-zero exit for scripting.
			if report.Failed() {
				return fmt.Errorf("plan stopped at step %d: %s", report.Error.StepIndex, report.Error.Message)
			}
			return nil
		},
	}

	runCmd.Flags().StringP("output", "o", "", "Output file path for the report. If unset, the report goes to stdout.")
	runCmd.Flags().StringP("format", "f", reporting.FormatJSON, "Report format ('json' or 'pretty').")

	return runCmd
}
