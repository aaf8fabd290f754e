package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var versionVerbose bool

func init() {
	versionCmd.Flags().BoolVar(&versionVerbose, "long", false, "show detailed version information")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	info := version.GetInfo()

	if !cc.Text() {
		return cc.Output(info)
	}
	if versionVerbose {
		return cc.Output(info.String())
	}
	return cc.Output("tasksync " + info.Short())
}
