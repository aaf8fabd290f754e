package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/ux"
)

var rootCmd = &cobra.Command{
	Use:   "tasksync",
	Short: "Tasks, teams, news and an AI assistant from the terminal",
	Long: `tasksync is a command-line client for a TaskSync workspace.

It signs you in to the TaskSync backend, manages your tasks and teams,
shows the latest headlines and lets you chat with an AI assistant.

Configuration is read from ~/.tasksync/config.yaml and TASKSYNC_*
environment variables. Run 'tasksync config init' to write a starter file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx and prints any error to
// stderr with its suggestions.
func ExecuteContext(ctx context.Context) error {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil && ctx.Err() == nil {
		noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		fmt.Fprintln(cmd.ErrOrStderr(), ux.RenderError(ux.StylesFor(noColor), err, verbose))
	}
	return err
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.tasksync/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.StringP("format", "f", "", "output format: text, json, yaml")
	flags.Bool("no-color", false, "disable colored output")
	flags.BoolP("verbose", "v", false, "show error causes")
	flags.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
}
