// Package hotkey provides global keyboard shortcuts for controlling
// playback while the target application has focus.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrInvalidHotkey is returned by Register for an unparseable chord.
var ErrInvalidHotkey = errors.New("invalid hotkey")

// aliases maps alternative spellings onto the names the hooks report.
var aliases = map[string]string{
	"CONTROL": "CTRL",
	"ESCAPE":  "ESC",
	"OPTION":  "ALT",
	"WIN":     "CMD",
	"SUPER":   "CMD",
	"RETURN":  "ENTER",
	"CAPS":    "CAPSLOCK",
	"DEL":     "DELETE",
}

// Manager handles global hotkey registration and matching
type Manager struct {
	mu           sync.Mutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // keys currently held
	logger       *slog.Logger
	platform     platformState
}

type registeredHotkey struct {
	parts    []string // e.g., ["CTRL", "ALT", "P"]
	original string
	callback func()
	// fired is set while the chord stays held so key repeat triggers once
	fired bool
}

// NewManager creates a new hotkey manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		currentState: make(map[string]bool),
		logger:       logger,
	}
}

// Parse normalizes a chord such as "Ctrl+Alt+P" into its key names.
func Parse(hotkeyStr string) ([]string, error) {
	raw := strings.Split(strings.ToUpper(hotkeyStr), "+")
	parts := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: %q has an empty key", ErrInvalidHotkey, hotkeyStr)
		}
		if a, ok := aliases[p]; ok {
			p = a
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: %q repeats %s", ErrInvalidHotkey, hotkeyStr, p)
		}
		seen[p] = true
		parts = append(parts, p)
	}
	return parts, nil
}

// Register binds a chord (e.g. "Ctrl+Alt+P") to callback. An empty chord
// is ignored.
func (m *Manager) Register(hotkeyStr string, callback func()) error {
	if hotkeyStr == "" {
		return nil
	}
	parts, err := Parse(hotkeyStr)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		callback: callback,
	})
	m.logger.Debug("hotkey registered", slog.String("hotkey", hotkeyStr))
	return nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState records a key transition and triggers every chord that just
// became fully held. Callbacks run on their own goroutine.
func (m *Manager) UpdateState(key string, isDown bool) {
	key = strings.ToUpper(key)

	m.mu.Lock()
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}

	var due []*registeredHotkey
	for _, hk := range m.hotkeys {
		held := true
		for _, part := range hk.parts {
			if !m.currentState[part] {
				held = false
				break
			}
		}
		switch {
		case held && !hk.fired && isDown:
			hk.fired = true
			due = append(due, hk)
		case !held:
			hk.fired = false
		}
	}
	m.mu.Unlock()

	for _, hk := range due {
		m.logger.Info("hotkey triggered", slog.String("hotkey", hk.original))
		go hk.callback()
	}
}

// Start installs the platform keyboard hook. Synthetic key events, such as
// those sent during playback, are ignored by the hook.
func (m *Manager) Start() error {
	return m.startPlatform()
}

// Stop removes the platform hook.
func (m *Manager) Stop() {
	m.stopPlatform()
}
