package playback

import (
	"log/slog"
	"time"
)

const (
	// DefaultPollInterval is how often a waiting run re-checks its state.
	DefaultPollInterval = time.Millisecond
	// DefaultLoopGap separates iterations of a looping run.
	DefaultLoopGap = 500 * time.Millisecond
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPollInterval sets the state polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithLoopGap sets the pause inserted between iterations of a looping run.
func WithLoopGap(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.loopGap = d
		}
	}
}

// WithSeed makes jitter reproducible: every run draws from a source seeded
// with seed.
func WithSeed(seed uint64) Option {
	return func(s *Scheduler) {
		s.seed = &seed
	}
}
