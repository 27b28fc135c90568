package command

import (
	"log/slog"

	"macroreplay/internal/config"
	"macroreplay/internal/hotkey"
	"macroreplay/internal/playback"
)

// control is the part of the scheduler the hotkeys drive.
type control interface {
	Pause()
	Resume()
	Stop()
	State() playback.State
}

// togglePause pauses a playing run and resumes a paused one.
func togglePause(c control) {
	switch c.State() {
	case playback.Playing:
		c.Pause()
	case playback.Paused:
		c.Resume()
	}
}

// bindHotkeys (re)registers the pause and stop chords from g.
func bindHotkeys(hk *hotkey.Manager, g config.GeneralConfig, c control, logger *slog.Logger) {
	hk.Clear()
	if err := hk.Register(g.PauseHotkey, func() { togglePause(c) }); err != nil {
		logger.Warn("failed to register pause hotkey", slog.String("hotkey", g.PauseHotkey), slog.String("error", err.Error()))
	}
	if err := hk.Register(g.StopHotkey, func() {
		logger.Info("stop hotkey pressed")
		c.Stop()
	}); err != nil {
		logger.Warn("failed to register stop hotkey", slog.String("hotkey", g.StopHotkey), slog.String("error", err.Error()))
	}
}

// startHotkeys installs the global hook. Playback works without it.
func startHotkeys(g config.GeneralConfig, c control, logger *slog.Logger) *hotkey.Manager {
	hk := hotkey.NewManager(logger)
	bindHotkeys(hk, g, c, logger)
	if err := hk.Start(); err != nil {
		logger.Warn("hotkeys unavailable", slog.String("error", err.Error()))
	}
	return hk
}
