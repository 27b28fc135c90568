package command

import (
	"fmt"
	"path/filepath"

	"macroreplay/internal/autostart"

	"github.com/spf13/cobra"
)

// NewAutostartCmd creates the autostart command.
func NewAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Start the tray service on login",
	}

	enable := &cobra.Command{
		Use:   "enable",
		Short: "Run 'serve --tray' on login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveArgs := []string{"serve", "--tray"}
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				abs, err := filepath.Abs(path)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				serveArgs = append([]string{"--config", abs}, serveArgs...)
			}
			entry, err := autostart.Command(serveArgs...)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := autostart.Enable(entry); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart enabled")
			return nil
		},
	}

	disable := &cobra.Command{
		Use:   "disable",
		Short: "Stop starting on login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := autostart.Disable(); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show whether autostart is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state := "disabled"
			if autostart.IsEnabled() {
				state = "enabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Autostart %s\n", state)
			return nil
		},
	}

	cmd.AddCommand(enable, disable, status)
	return cmd
}
