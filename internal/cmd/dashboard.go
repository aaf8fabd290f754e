package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show your profile, task summary, tasks and teams",
	Long: `Show the landing view: who you are, how your tasks stand, and your teams.

Each section loads on its own; if one fails its error is shown in place and
the others still render.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}
		d, err := a.Dashboard(ctx)
		if err != nil {
			return err
		}
		return cc.Output(ux.DashboardView(*d))
	})
}
