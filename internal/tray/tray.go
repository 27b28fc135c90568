// Package tray provides a system tray menu for controlling playback using
// getlantern/systray.
package tray

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"macroreplay/internal/playback"

	"github.com/getlantern/systray"
)

// maxMacros is the number of macro slots in the Play submenu. systray
// cannot remove items, so slots are reused and hidden when unused.
const maxMacros = 20

// Controls is the part of the scheduler the tray drives.
type Controls interface {
	Pause()
	Resume()
	Stop()
	State() playback.State
}

// PlayFunc starts the named macro.
type PlayFunc func(name string, loop bool) error

// NamesFunc lists the playable macros.
type NamesFunc func() ([]string, error)

// Tray manages the system tray icon and menu
type Tray struct {
	ctl    Controls
	play   PlayFunc
	names  NamesFunc
	logger *slog.Logger
	onQuit func()

	mu      sync.Mutex
	looping bool
	slots   []string
	updates chan playback.Progress
	done    chan playback.Progress
	refresh chan struct{}
	quitCh  chan struct{}

	mStatus *systray.MenuItem
	mPlay   *systray.MenuItem
	mMacros []*systray.MenuItem
	mLoop   *systray.MenuItem
	mPause  *systray.MenuItem
	mStop   *systray.MenuItem
	mQuit   *systray.MenuItem
}

// New creates a new system tray. onQuit runs when the Quit item is chosen.
func New(ctl Controls, play PlayFunc, names NamesFunc, logger *slog.Logger, onQuit func()) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		ctl:     ctl,
		play:    play,
		names:   names,
		logger:  logger,
		onQuit:  onQuit,
		updates: make(chan playback.Progress, 64),
		done:    make(chan playback.Progress, 1),
		refresh: make(chan struct{}, 1),
		quitCh:  make(chan struct{}),
	}
}

// Run starts the tray event loop (blocks). It must be called from the main
// goroutine on platforms that require it.
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() { close(t.quitCh) })
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// Update reports playback progress. It never blocks; when the tray falls
// behind, intermediate updates are dropped. The final notification of a
// run is always kept.
func (t *Tray) Update(p playback.Progress) {
	if !p.Done {
		select {
		case t.updates <- p:
		default:
		}
		return
	}
	for {
		select {
		case t.done <- p:
			return
		default:
		}
		// replace an older run's result nobody has shown yet
		select {
		case <-t.done:
		default:
		}
	}
}

// Refresh reloads the macro list.
func (t *Tray) Refresh() {
	select {
	case t.refresh <- struct{}{}:
	default:
	}
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("Replay")
	systray.SetTooltip("Macro replay: idle")
	systray.SetIcon(getIcon())

	t.mStatus = systray.AddMenuItem("Idle", "Playback state")
	t.mStatus.Disable()
	systray.AddSeparator()

	t.mPlay = systray.AddMenuItem("Play", "Play a stored macro")
	for range maxMacros {
		item := t.mPlay.AddSubMenuItem("", "")
		item.Hide()
		t.mMacros = append(t.mMacros, item)
	}
	t.mLoop = systray.AddMenuItem("Loop", "Repeat the macro until stopped")
	t.mPause = systray.AddMenuItem("Pause", "Pause or resume playback")
	t.mStop = systray.AddMenuItem("Stop", "Stop playback")
	systray.AddSeparator()
	t.mQuit = systray.AddMenuItem("Quit", "Quit")

	t.loadMacros()
	t.apply(t.ctl.State(), "Idle")

	for i, item := range t.mMacros {
		go t.watchMacro(i, item)
	}
	go t.loop()
}

func (t *Tray) watchMacro(slot int, item *systray.MenuItem) {
	for {
		select {
		case <-item.ClickedCh:
			t.mu.Lock()
			name, loop := "", t.looping
			if slot < len(t.slots) {
				name = t.slots[slot]
			}
			t.mu.Unlock()
			if name == "" {
				continue
			}
			if err := t.play(name, loop); err != nil {
				t.logger.Warn("tray: play failed", slog.String("macro", name), slog.String("error", err.Error()))
				t.mStatus.SetTitle("Error: " + err.Error())
			}
		case <-t.quitCh:
			return
		}
	}
}

func (t *Tray) loop() {
	for {
		select {
		case <-t.mLoop.ClickedCh:
			t.mu.Lock()
			t.looping = !t.looping
			on := t.looping
			t.mu.Unlock()
			if on {
				t.mLoop.Check()
			} else {
				t.mLoop.Uncheck()
			}

		case <-t.mPause.ClickedCh:
			toggle(t.ctl)

		case <-t.mStop.ClickedCh:
			t.ctl.Stop()

		case <-t.mQuit.ClickedCh:
			t.ctl.Stop()
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()

		case p := <-t.updates:
			t.apply(p.State, StatusLine(p))

		case p := <-t.done:
			// progress queued before the run ended is stale now
			for len(t.updates) > 0 {
				<-t.updates
			}
			t.apply(p.State, StatusLine(p))

		case <-t.refresh:
			t.loadMacros()

		case <-t.quitCh:
			return
		}
	}
}

// toggle pauses a playing run and resumes a paused one.
func toggle(ctl Controls) {
	switch ctl.State() {
	case playback.Playing:
		ctl.Pause()
	case playback.Paused:
		ctl.Resume()
	}
}

func (t *Tray) apply(st playback.State, status string) {
	l := labelsFor(st)
	t.mStatus.SetTitle(status)
	systray.SetTooltip("Macro replay: " + status)
	t.mPause.SetTitle(l.pause)
	setEnabled(t.mPause, l.pauseEnabled)
	setEnabled(t.mStop, l.stopEnabled)
	setEnabled(t.mPlay, l.playEnabled)
}

func setEnabled(item *systray.MenuItem, on bool) {
	if on {
		item.Enable()
	} else {
		item.Disable()
	}
}

func (t *Tray) loadMacros() {
	names, err := t.names()
	if err != nil {
		t.logger.Warn("tray: failed to list macros", slog.String("error", err.Error()))
		return
	}
	if len(names) > maxMacros {
		t.logger.Info("tray: macro list truncated", slog.Int("macros", len(names)), slog.Int("shown", maxMacros))
		names = names[:maxMacros]
	}

	t.mu.Lock()
	t.slots = names
	t.mu.Unlock()

	for i, item := range t.mMacros {
		if i < len(names) {
			item.SetTitle(names[i])
			item.Show()
		} else {
			item.Hide()
		}
	}
}

type labels struct {
	pause        string
	pauseEnabled bool
	stopEnabled  bool
	playEnabled  bool
}

func labelsFor(st playback.State) labels {
	switch st {
	case playback.Playing:
		return labels{pause: "Pause", pauseEnabled: true, stopEnabled: true}
	case playback.Paused:
		return labels{pause: "Resume", pauseEnabled: true, stopEnabled: true}
	default:
		return labels{pause: "Pause", playEnabled: true}
	}
}

// StatusLine renders a progress notification for the tray and tooltip.
func StatusLine(p playback.Progress) string {
	if p.Done {
		if p.Summary == nil {
			return "Idle"
		}
		s := p.Summary
		line := fmt.Sprintf("%s %s: %d events", p.Macro, s.Outcome(), s.Fired)
		if s.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", s.Skipped)
		}
		return line
	}

	line := fmt.Sprintf("%s %d/%d at %s of %s", p.Macro, p.Index+1, p.Events,
		p.Nominal.Round(10*time.Millisecond), p.Total.Round(10*time.Millisecond))
	if p.Iteration > 1 {
		line += fmt.Sprintf(" (loop %d)", p.Iteration)
	}
	if p.State == playback.Paused {
		line = "Paused: " + line
	}
	return line
}
