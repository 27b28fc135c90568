package command

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"macroreplay/internal/history"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [macro]",
		Short: "Show recent playback runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			limit, _ := cmd.Flags().GetInt("limit")
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			log, err := history.Open(ctx.Config.Get().General.HistoryPath)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer log.Close()

			entries, err := log.Recent(cmd.Context(), name, limit)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			out := cmd.OutOrStdout()
			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				if entries == nil {
					entries = []history.Entry{}
				}
				return json.NewEncoder(out).Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tMACRO\tOUTCOME\tITERATIONS\tFIRED\tSKIPPED\tDURATION")
			for _, e := range entries {
				outcome := e.Outcome
				if e.Error != "" {
					outcome += " (" + e.Error + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					humanize.Time(e.Started), e.Macro, outcome, e.Iterations, e.Fired, e.Skipped,
					e.Duration().Round(10*time.Millisecond))
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int("limit", 20, "number of runs to show (0 for all)")
	cmd.Flags().Bool("json", false, "output in JSON format")
	return cmd
}
