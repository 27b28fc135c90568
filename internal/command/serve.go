package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"macroreplay/internal/api"
	"macroreplay/internal/config"
	"macroreplay/internal/osutils"
	"macroreplay/internal/playback"
	"macroreplay/internal/store"
	"macroreplay/internal/tray"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the playback service",
		Long: "Run a long-lived scheduler controlled over HTTP (when api_enabled is set), " +
			"from the system tray (--tray) and with the global hotkeys.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			withTray, _ := cmd.Flags().GetBool("tray")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			addr, _ := cmd.Flags().GetString("addr")

			cfg := ctx.Config.Get()
			if !cfg.General.APIEnabled && !withTray {
				return writeCommandError(cmd, errors.New("nothing to serve: enable general.api_enabled or pass --tray"))
			}
			if addr == "" {
				addr = fmt.Sprintf(":%d", cfg.General.APIPort)
			}
			return runService(cmd, ctx, serviceOptions{
				tray:   withTray,
				api:    cfg.General.APIEnabled,
				addr:   addr,
				dryRun: dryRun,
			})
		},
	}

	cmd.Flags().Bool("tray", false, "show the system tray menu")
	cmd.Flags().Bool("dry-run", false, "log actions instead of injecting input")
	cmd.Flags().String("addr", "", "API listen address (default \":<general.api_port>\")")

	return cmd
}

type serviceOptions struct {
	tray   bool
	api    bool
	addr   string
	dryRun bool
}

func runService(cmd *cobra.Command, ctx *CommandContext, opts serviceOptions) error {
	logger := ctx.Logger
	logger.Info("replay service starting", slog.String("macros", ctx.Store.Dir()))

	sched := ctx.NewScheduler(ctx.Actuator(opts.dryRun))

	hist := ctx.OpenHistory()
	if hist != nil {
		defer hist.Close()
	}
	ctx.RecordRuns(sched, hist)

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var apiServer *api.Server
	if opts.api {
		if port, ok := remotePort(opts.addr); ok {
			go func() {
				if err := osutils.EnsureFirewallRule(port, logger); err != nil {
					logger.Warn("firewall rule not created", slog.String("error", err.Error()))
				}
			}()
		}
		apiServer = api.NewServer(ctx.Config, sched, ctx.Store, logger)
		sched.OnProgress(apiServer.BroadcastProgress)
		go func() {
			if err := apiServer.Start(opts.addr); err != nil {
				logger.Error("api server error", slog.String("error", err.Error()))
				stop()
			}
		}()
	}

	var t *tray.Tray
	if opts.tray {
		play := func(name string, loop bool) error {
			m, err := ctx.Store.Load(name)
			if err != nil {
				return err
			}
			return sched.Start(m, ctx.Config.Get().Playback, loop)
		}
		t = tray.New(sched, play, ctx.Store.Names, logger, stop)
		sched.OnProgress(t.Update)
	}

	hk := startHotkeys(ctx.Config.Get().General, sched, logger)
	defer hk.Stop()
	ctx.Config.RegisterChangeCallback(func(c config.Config) {
		bindHotkeys(hk, c.General, sched, logger)
	})

	err := ctx.Store.Watch(sigCtx, func(c store.Change) {
		logger.Debug("macro changed", slog.String("macro", c.Name), slog.String("op", string(c.Op)))
		if apiServer != nil {
			apiServer.BroadcastMacroChange(c)
		}
		if t != nil {
			t.Refresh()
		}
	})
	if err != nil {
		logger.Warn("macro directory is not watched", slog.String("error", err.Error()))
	}

	if t != nil {
		go func() {
			<-sigCtx.Done()
			t.Stop()
		}()
		// blocks until Quit or the signal above
		t.Run()
		stop()
	} else {
		<-sigCtx.Done()
	}

	logger.Info("replay service stopping")
	return shutdown(sched, apiServer)
}

func shutdown(sched *playback.Scheduler, apiServer *api.Server) error {
	sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.Wait(ctx); err != nil && errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if apiServer != nil {
		return apiServer.Shutdown(ctx)
	}
	return nil
}

// remotePort returns the port of addr when addr accepts connections from
// other hosts.
func remotePort(addr string) (int, bool) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil || host == "localhost" {
		return 0, false
	}
	port, err := strconv.Atoi(p)
	if err != nil || port == 0 {
		return 0, false
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return 0, false
	}
	return port, true
}
