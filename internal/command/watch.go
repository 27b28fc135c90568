package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"macroreplay/internal/network"
	"macroreplay/internal/protocol"

	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow playback on a running replay service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			addr, _ := cmd.Flags().GetString("addr")
			once, _ := cmd.Flags().GetBool("once")
			g := ctx.Config.Get().General
			if addr == "" {
				addr = fmt.Sprintf("127.0.0.1:%d", g.APIPort)
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			client := network.NewWSClient(addr, g.APIToken, ctx.Logger)
			p := &progressPrinter{out: cmd.OutOrStdout()}
			client.OnState = p.state
			client.OnMacros = p.macros
			client.OnProgress = func(pp protocol.ProgressPayload) {
				p.progress(pp)
				if once && pp.Done {
					cancel()
				}
			}

			if err := client.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "service address (default \"127.0.0.1:<general.api_port>\")")
	cmd.Flags().Bool("once", false, "exit after the first run finishes")
	return cmd
}

// progressPrinter writes one line per notification.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *progressPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *progressPrinter) state(s protocol.StatePayload) {
	if s.Checkpoint != nil {
		p.printf("state %s: %s next event %d, iteration %d\n", s.State, s.Checkpoint.Macro, s.Checkpoint.Index, s.Checkpoint.Iteration)
		return
	}
	p.printf("state %s\n", s.State)
}

func (p *progressPrinter) macros(m protocol.MacrosPayload) {
	p.printf("macro %s: %s\n", m.Name, m.Op)
}

func (p *progressPrinter) progress(pp protocol.ProgressPayload) {
	if pp.Done {
		line := fmt.Sprintf("%s %s: %d fired, %d skipped", pp.Macro, pp.Outcome, pp.Fired, pp.Skipped)
		if pp.Error != "" {
			line += ": " + pp.Error
		}
		p.printf("%s\n", line)
		return
	}
	p.printf("%s [%s] %d/%d at %.2fs of %.2fs (iteration %d)\n",
		pp.Macro, pp.State, pp.Index+1, pp.Events, pp.Nominal, pp.Total, pp.Iteration)
}
