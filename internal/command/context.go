package command

import (
	"context"
	"log/slog"
	"runtime"

	"macroreplay/internal/config"
	"macroreplay/internal/history"
	"macroreplay/internal/input"
	"macroreplay/internal/osutils"
	"macroreplay/internal/playback"
	"macroreplay/internal/store"

	"github.com/spf13/cobra"
)

// CommandContext holds what most commands need: the loaded config, the
// macro store and a logger writing to the command's stderr.
type CommandContext struct {
	Config *config.Manager
	Store  *store.Store
	Logger *slog.Logger
}

// GetContext loads the config and opens the macro store.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	logger := newLogger(cmd)

	path, _ := cmd.Flags().GetString("config")
	var (
		mgr *config.Manager
		err error
	)
	if path != "" {
		mgr, err = config.NewManagerAt(path, logger)
	} else {
		mgr, err = config.NewManager(logger)
	}
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}

	st, err := store.Open(mgr.Get().General.MacroDir, logger)
	if err != nil {
		return nil, err
	}
	return &CommandContext{Config: mgr, Store: st, Logger: logger}, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// NewScheduler builds a scheduler with the general timing settings.
func (c *CommandContext) NewScheduler(act input.Actuator) *playback.Scheduler {
	g := c.Config.Get().General
	return playback.New(act,
		playback.WithLogger(c.Logger),
		playback.WithPollInterval(g.PollInterval()),
		playback.WithLoopGap(g.LoopGapDuration()),
	)
}

// Actuator returns the platform injector, or a logging actuator when
// dryRun is set.
func (c *CommandContext) Actuator(dryRun bool) input.Actuator {
	if dryRun {
		return input.NewDryRun(c.Logger)
	}
	if runtime.GOOS == "windows" && !osutils.IsAdmin() {
		c.Logger.Info("not elevated: input to elevated windows will be blocked")
	}
	return input.NewInjector()
}

// OpenHistory opens the run history. Playback goes on without it, so
// failures are logged and nil is returned.
func (c *CommandContext) OpenHistory() *history.Log {
	log, err := history.Open(c.Config.Get().General.HistoryPath)
	if err != nil {
		c.Logger.Warn("history unavailable", slog.String("error", err.Error()))
		return nil
	}
	return log
}

// RecordRuns stores every finished run of s in log.
func (c *CommandContext) RecordRuns(s *playback.Scheduler, log *history.Log) {
	if log == nil {
		return
	}
	s.OnProgress(func(p playback.Progress) {
		if !p.Done || p.Summary == nil {
			return
		}
		if err := log.Record(context.Background(), history.FromSummary(*p.Summary)); err != nil {
			c.Logger.Warn("failed to record run", slog.String("run_id", p.RunID.String()), slog.String("error", err.Error()))
		}
	})
}
