package command

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"macroreplay/internal/network"

	"github.com/spf13/cobra"
)

// NewDiscoverCmd creates the discover command.
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover [host:port...]",
		Short: "Find replay services",
		Long: `Probe the given addresses, or every host of the local /24 subnet, for a running replay service.

The API token is only sent to addresses given on the command line. Services
found by a subnet scan that require a token are listed without their state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			g := ctx.Config.Get().General
			port, _ := cmd.Flags().GetInt("port")
			if port == 0 {
				port = g.APIPort
			}

			var hosts []network.DiscoveredHost
			if len(args) > 0 {
				hosts = network.Scan(cmd.Context(), args, g.APIToken)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Scanning local network on port %d...\n", port)
				hosts, err = network.ScanLAN(cmd.Context(), port)
				if err != nil {
					return writeCommandError(cmd, err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				if hosts == nil {
					hosts = []network.DiscoveredHost{}
				}
				return json.NewEncoder(out).Encode(hosts)
			}
			if len(hosts) == 0 {
				fmt.Fprintln(out, "No replay services found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tSTATE\tMACRO")
			for _, h := range hosts {
				state := h.State
				if state == "" {
					state = "(unauthorized)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", h.Addr, state, h.Macro)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int("port", 0, "API port to probe (default general.api_port)")
	cmd.Flags().Bool("json", false, "output in JSON format")
	return cmd
}
