package playback

import (
	"macroreplay/internal/jitter"
	"macroreplay/internal/motion"
)

// Config groups the options a run is started with.
type Config struct {
	Jitter jitter.Config `json:"jitter"`
	Motion motion.Config `json:"motion"`
}

// DefaultConfig returns jitter and motion defaults, both disabled.
func DefaultConfig() Config {
	return Config{
		Jitter: jitter.DefaultConfig(),
		Motion: motion.DefaultConfig(),
	}
}

// Validate checks both option groups.
func (c Config) Validate() error {
	if err := c.Jitter.Validate(); err != nil {
		return err
	}
	return c.Motion.Validate()
}
