// Package jitter perturbs replay delays and pointer positions so repeated
// runs of a macro do not line up exactly.
//
// Delay and Position are pure functions of their inputs, the Config and a
// random source. Jitterer bundles a Config with a seeded source for callers
// that do not want to thread the source through themselves.
package jitter

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid jitter config")

// Config controls randomization.
type Config struct {
	Enabled bool `json:"enabled"`
	// PositionPx is the maximum offset applied to each pointer axis.
	PositionPx int `json:"position_jitter_px"`
	// TimePercent is the maximum proportional change of a delay, 0-100.
	TimePercent float64 `json:"time_jitter_percent"`
	// MaxExtraDelay is the ceiling for a jittered delay, in seconds.
	MaxExtraDelay float64 `json:"max_extra_delay_s"`
}

// DefaultConfig mirrors the recorder's defaults. Jitter starts disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		PositionPx:    5,
		TimePercent:   15,
		MaxExtraDelay: 0.5,
	}
}

// Validate rejects bounds that would make the engine misbehave.
func (c Config) Validate() error {
	if c.PositionPx < 0 {
		return fmt.Errorf("%w: position_jitter_px must be >= 0, got %d", ErrInvalidConfig, c.PositionPx)
	}
	if c.TimePercent < 0 || c.TimePercent > 100 || math.IsNaN(c.TimePercent) {
		return fmt.Errorf("%w: time_jitter_percent must be within [0, 100], got %v", ErrInvalidConfig, c.TimePercent)
	}
	if c.MaxExtraDelay < 0 || math.IsNaN(c.MaxExtraDelay) || math.IsInf(c.MaxExtraDelay, 0) {
		return fmt.Errorf("%w: max_extra_delay_s must be >= 0, got %v", ErrInvalidConfig, c.MaxExtraDelay)
	}
	return nil
}

// Rand is the random source consumed by Delay and Position. *rand.Rand
// satisfies it.
type Rand interface {
	Float64() float64
}

func uniform(r Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// Delay perturbs base. The result is never shorter than base. A perturbed
// value above MaxExtraDelay is cut to MaxExtraDelay, which means a base that
// already exceeds the ceiling comes back unchanged.
func Delay(base time.Duration, cfg Config, r Rand) time.Duration {
	if !cfg.Enabled || base < 0 {
		return base
	}
	b := base.Seconds()
	spread := b * cfg.TimePercent / 100
	perturbed := b + uniform(r, -spread, spread) + spread/10
	perturbed = max(perturbed, 0)

	out := max(b, min(cfg.MaxExtraDelay, perturbed))
	d := time.Duration(out * float64(time.Second))
	// float rounding must not undercut the original delay
	return max(d, base)
}

// Position offsets each axis independently by up to PositionPx pixels.
func Position(x, y int, cfg Config, r Rand) (int, int) {
	if !cfg.Enabled || cfg.PositionPx == 0 {
		return x, y
	}
	j := float64(cfg.PositionPx)
	jx := float64(x) + uniform(r, -j, j)
	jy := float64(y) + uniform(r, -j, j)
	return int(jx), int(jy)
}

// Jitterer applies a Config with its own random source. It is safe for
// concurrent use.
type Jitterer struct {
	mu  sync.Mutex
	cfg Config
	rng *rand.Rand
}

// New creates a Jitterer. A nil src seeds from the runtime.
func New(cfg Config, src rand.Source) *Jitterer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Jitterer{cfg: cfg, rng: rand.New(src)}
}

// Delay perturbs base according to the configuration.
func (j *Jitterer) Delay(base time.Duration) time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Delay(base, j.cfg, j.rng)
}

// Position perturbs a pointer target according to the configuration.
func (j *Jitterer) Position(x, y int) (int, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Position(x, y, j.cfg, j.rng)
}
