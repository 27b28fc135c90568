// Package command implements the replay command line.
package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "replay"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Replay recorded mouse and keyboard macros",
		Long:          "Replay plays recorded pointer and keyboard macros with their original timing, optional jitter and smooth pointer motion.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "path to the config file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output")

	cmd.AddCommand(
		NewPlayCmd(),
		NewListCmd(),
		NewShowCmd(),
		NewNormalizeCmd(),
		NewAppendCmd(),
		NewRmCmd(),
		NewConfigCmd(),
		NewServeCmd(),
		NewWatchCmd(),
		NewDiscoverCmd(),
		NewAutostartCmd(),
		NewHistoryCmd(),
	)

	return cmd
}
