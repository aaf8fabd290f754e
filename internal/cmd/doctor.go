package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/health"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and connectivity",
	Long: `Run diagnostics to check that TaskSync is properly configured.

Checks include:
  • Backend reachability
  • The encrypted credential store
  • News and assistant API keys

A missing API key only degrades the report; an unreachable backend or an
unreadable credential store makes it unhealthy and the command fails.

Examples:
  tasksync doctor
  tasksync doctor --format json
`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var doctorTimeout time.Duration

func init() {
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 5*time.Second, "timeout for each check")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		report := a.HealthManager().WithTimeout(doctorTimeout).Check(cmd.Context())
		if err := cc.Output(ux.HealthReport(report)); err != nil {
			return err
		}
		if report.Status == health.StatusUnhealthy {
			return errors.New(errors.ErrCodeConfigInvalid, "TaskSync is not healthy").
				WithSuggestion("Fix the checks marked ✗ above and run 'tasksync doctor' again")
		}
		return nil
	})
}
