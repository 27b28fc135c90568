package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"macroreplay/internal/playback"
	"macroreplay/internal/tui"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewPlayCmd creates the play command.
func NewPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <name>",
		Short: "Play a stored macro",
		Long:  "Play a stored macro with its recorded timing. The pause and stop hotkeys from the config control the run; Ctrl+C stops it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			loop, _ := cmd.Flags().GetBool("loop")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			useTUI, _ := cmd.Flags().GetBool("tui")

			m, err := ctx.Store.Load(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if m.Len() == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no events\n", m.Name)
				return nil
			}

			cfg := ctx.Config.Get()
			sched := ctx.NewScheduler(ctx.Actuator(dryRun))

			hist := ctx.OpenHistory()
			if hist != nil {
				defer hist.Close()
			}
			ctx.RecordRuns(sched, hist)

			var updates chan playback.Progress
			if useTUI {
				updates = make(chan playback.Progress, 256)
				sched.OnProgress(func(p playback.Progress) {
					if p.Done {
						updates <- p
						close(updates)
						return
					}
					select {
					case updates <- p:
					default:
					}
				})
			}

			hk := startHotkeys(cfg.General, sched, ctx.Logger)
			defer hk.Stop()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			context.AfterFunc(sigCtx, sched.Stop)

			if err := sched.Start(m, cfg.Playback, loop); err != nil {
				return writeCommandError(cmd, err)
			}

			if useTUI {
				_, err := tui.Run(sched, updates)
				// keep the final notification from blocking once the view is gone
				go func() {
					for range updates {
					}
				}()
				if err != nil {
					sched.Stop()
					sched.Wait(context.Background())
					return writeCommandError(cmd, err)
				}
			}

			err = sched.Wait(context.Background())
			if summary, ok := sched.LastRun(); ok {
				printSummary(cmd, summary)
			}
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("loop", false, "repeat until stopped")
	cmd.Flags().Bool("dry-run", false, "log actions instead of injecting input")
	cmd.Flags().Bool("tui", false, "show a progress view")

	return cmd
}

func printSummary(cmd *cobra.Command, s playback.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s: %d events fired", s.Macro, s.Outcome(), s.Fired)
	if s.Skipped > 0 {
		fmt.Fprintf(out, ", %d skipped", s.Skipped)
	}
	if s.Loop {
		fmt.Fprintf(out, " over %s", humanize.Plural(s.Iterations, "iteration", ""))
	}
	fmt.Fprintf(out, " in %s\n", s.Ended.Sub(s.Started).Round(10*time.Millisecond))
}
