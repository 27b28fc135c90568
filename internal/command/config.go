package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change settings",
	}
	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [path]",
		Short: "Print a setting, or the whole config",
		Example: "  replay config get\n" +
			"  replay config get playback.jitter",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				data, err := json.MarshalIndent(ctx.Config.Get(), "", "  ")
				if err != nil {
					return writeCommandError(cmd, err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			value, err := ctx.Config.GetPath(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Change a setting",
		Example: "  replay config set playback.jitter.enabled true\n" +
			"  replay config set general.pause_hotkey Ctrl+Shift+P",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Config.SetPath(args[0], args[1]); err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Config.Save(); err != nil {
				return writeCommandError(cmd, err)
			}

			value, _ := ctx.Config.GetPath(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], value)
			return nil
		},
	}
}
