// Package config provides configuration management for the macro player.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"macroreplay/internal/playback"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const appName = "macroreplay"

var (
	// ErrInvalidConfig wraps every rejected configuration change.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownKey is returned by GetPath for a path that has no value.
	ErrUnknownKey = errors.New("unknown configuration key")
)

// Config represents the application configuration
type Config struct {
	// Playback holds the jitter and motion options every run starts with
	Playback playback.Config `json:"playback"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// MacroDir holds one JSON file per macro
	MacroDir string `json:"macro_dir"`

	// HistoryPath is the SQLite run history
	HistoryPath string `json:"history_path"`

	// APIEnabled enables the HTTP control surface in serve mode
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the API server (default: 18090)
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API requests
	APIToken string `json:"api_token"`

	// PauseHotkey toggles pause/resume (e.g. "Ctrl+Alt+P")
	PauseHotkey string `json:"pause_hotkey"`

	// StopHotkey stops the active run
	StopHotkey string `json:"stop_hotkey"`

	// LoopGap is the pause between iterations of a looping run, in seconds
	LoopGap float64 `json:"loop_gap_s"`

	// PollIntervalMs is how often a waiting run checks for pause and stop
	PollIntervalMs int `json:"poll_interval_ms"`
}

// DefaultConfig returns a new Config with sensible defaults. Paths are
// filled in by the Manager relative to its config directory.
func DefaultConfig() *Config {
	return &Config{
		Playback: playback.DefaultConfig(),
		General: GeneralConfig{
			APIEnabled:     true,
			APIPort:        18090,
			PauseHotkey:    "Ctrl+Alt+P",
			StopHotkey:     "Ctrl+Alt+Esc",
			LoopGap:        playback.DefaultLoopGap.Seconds(),
			PollIntervalMs: int(playback.DefaultPollInterval / time.Millisecond),
		},
	}
}

// Validate rejects values that must never reach the timing loop.
func (c *Config) Validate() error {
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	g := c.General
	if g.APIPort < 0 || g.APIPort > 65535 || (g.APIEnabled && g.APIPort == 0) {
		return fmt.Errorf("%w: api_port %d out of range", ErrInvalidConfig, g.APIPort)
	}
	if g.LoopGap < 0 {
		return fmt.Errorf("%w: loop_gap_s must be >= 0, got %v", ErrInvalidConfig, g.LoopGap)
	}
	if g.PollIntervalMs < 1 || g.PollIntervalMs > 50 {
		return fmt.Errorf("%w: poll_interval_ms must be within [1, 50], got %d", ErrInvalidConfig, g.PollIntervalMs)
	}
	return nil
}

// LoopGapDuration returns LoopGap as a duration.
func (g GeneralConfig) LoopGapDuration() time.Duration {
	return time.Duration(g.LoopGap * float64(time.Second))
}

// PollInterval returns PollIntervalMs as a duration.
func (g GeneralConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalMs) * time.Millisecond
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  []func(Config)
	logger     *slog.Logger
}

// NewManager creates a configuration manager using the per-user config
// directory.
func NewManager(logger *slog.Logger) (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath, logger)
}

// NewManagerAt creates a configuration manager backed by configPath.
func NewManagerAt(configPath string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	m := &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
		logger:     logger,
	}
	m.fillPaths(m.config)
	return m, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", appName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, appName)
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(base, appName)
	}

	return filepath.Join(configDir, "config.json"), nil
}

// fillPaths points empty paths at the config directory.
func (m *Manager) fillPaths(c *Config) {
	dir := filepath.Dir(m.configPath)
	if c.General.MacroDir == "" {
		c.General.MacroDir = filepath.Join(dir, "macros")
	}
	if c.General.HistoryPath == "" {
		c.General.HistoryPath = filepath.Join(dir, "history.db")
	}
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the
// defaults; an invalid one is rejected and leaves the current config alone.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	next := DefaultConfig()
	if err := json.Unmarshal(data, next); err != nil {
		return fmt.Errorf("failed to parse %s: %w", m.configPath, err)
	}
	m.fillPaths(next)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = next
	m.mu.Unlock()
	m.changed(*next)
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	m.logger.Info("config: saving configuration", slog.String("path", m.configPath), slog.Int("bytes", len(data)))
	tmp := m.configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.configPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.config
}

// Set replaces the configuration after validating it
func (m *Manager) Set(config Config) error {
	m.fillPaths(&config)
	if err := config.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = &config
	m.mu.Unlock()
	m.changed(config)
	return nil
}

// Update applies fn to a copy of the configuration and keeps the result
// only if it validates.
func (m *Manager) Update(fn func(*Config)) error {
	next := m.Get()
	fn(&next)
	return m.Set(next)
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = append(m.onChanged, fn)
}

func (m *Manager) changed(c Config) {
	m.mu.Lock()
	callbacks := append([]func(Config){}, m.onChanged...)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn(c)
	}
}

// GetPath returns the JSON value at a dotted path such as
// "playback.jitter.enabled".
func (m *Manager) GetPath(path string) (string, error) {
	data, err := json.Marshal(m.Get())
	if err != nil {
		return "", err
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, path)
	}
	return res.Raw, nil
}

// SetPath assigns value at a dotted path. String settings take value
// verbatim; other settings parse it as JSON, so both `true` and
// `Ctrl+Alt+P` work from a shell. Unknown paths are rejected.
func (m *Manager) SetPath(path, value string) error {
	data, err := json.Marshal(m.Get())
	if err != nil {
		return err
	}
	cur := gjson.GetBytes(data, path)
	if !cur.Exists() {
		return fmt.Errorf("%w: %s", ErrUnknownKey, path)
	}

	if cur.Type != gjson.String && gjson.Valid(value) {
		data, err = sjson.SetRawBytes(data, path, []byte(value))
	} else {
		data, err = sjson.SetBytes(data, path, value)
	}
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}

	var next Config
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return m.Set(next)
}
