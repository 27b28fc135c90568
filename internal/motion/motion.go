// Package motion plans smooth pointer transit between two screen points.
package motion

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid motion config")

// Config controls interpolated pointer movement.
type Config struct {
	SmoothEnabled bool `json:"smooth_enabled"`
	// Steps is the number of intervals between start and end. A plan has
	// Steps+1 waypoints.
	Steps int `json:"steps"`
	// StepDelay is the minimum pacing between waypoints, in seconds.
	StepDelay float64 `json:"step_delay_s"`
}

// DefaultConfig returns the recorder's defaults. Smooth motion starts disabled.
func DefaultConfig() Config {
	return Config{SmoothEnabled: false, Steps: 20, StepDelay: 0.001}
}

// Validate rejects configurations the planner cannot honour.
func (c Config) Validate() error {
	if c.Steps < 1 {
		return fmt.Errorf("%w: steps must be >= 1, got %d", ErrInvalidConfig, c.Steps)
	}
	if c.StepDelay < 0 || math.IsNaN(c.StepDelay) || math.IsInf(c.StepDelay, 0) {
		return fmt.Errorf("%w: step_delay_s must be >= 0, got %v", ErrInvalidConfig, c.StepDelay)
	}
	return nil
}

// Point is a screen position in pixels.
type Point struct {
	X, Y int
}

// Plan is a linear path from From to To. It is a value: iterating it twice
// yields the same waypoints.
type Plan struct {
	From, To Point
	Steps    int
	// Pace is the time between successive waypoints.
	Pace time.Duration
}

// NewPlan lays out a transit that spends budget moving from -> to. The pace
// never drops below the configured step delay, so a short budget can make
// the transit overrun it.
func NewPlan(from, to Point, budget time.Duration, cfg Config) Plan {
	steps := max(cfg.Steps, 1)
	floor := time.Duration(cfg.StepDelay * float64(time.Second))
	return Plan{
		From:  from,
		To:    to,
		Steps: steps,
		Pace:  max(floor, budget/time.Duration(steps)),
	}
}

// Len returns the number of waypoints, both ends included.
func (p Plan) Len() int {
	return p.Steps + 1
}

// Duration is the time from the first to the last waypoint.
func (p Plan) Duration() time.Duration {
	return p.Pace * time.Duration(p.Steps)
}

// At returns waypoint i. At(0) is From and At(Steps) is To.
func (p Plan) At(i int) Point {
	if p.Steps <= 0 || i >= p.Steps {
		return p.To
	}
	if i <= 0 {
		return p.From
	}
	t := float64(i) / float64(p.Steps)
	return Point{
		X: int(float64(p.From.X) + float64(p.To.X-p.From.X)*t),
		Y: int(float64(p.From.Y) + float64(p.To.Y-p.From.Y)*t),
	}
}

// Offset is when waypoint i should be reached, relative to the start of the
// transit.
func (p Plan) Offset(i int) time.Duration {
	return p.Pace * time.Duration(i)
}

// Waypoints yields (index, point) pairs lazily.
func (p Plan) Waypoints() iter.Seq2[int, Point] {
	return func(yield func(int, Point) bool) {
		for i := 0; i < p.Len(); i++ {
			if !yield(i, p.At(i)) {
				return
			}
		}
	}
}
