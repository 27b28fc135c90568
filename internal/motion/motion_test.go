package motion

import (
	"errors"
	"testing"
	"time"
)

func TestPlanEndpoints(t *testing.T) {
	p := NewPlan(Point{0, 0}, Point{100, -50}, 200*time.Millisecond, Config{Steps: 10, StepDelay: 0.001})

	if p.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", p.Len())
	}
	if got := p.At(0); got != (Point{0, 0}) {
		t.Errorf("At(0) = %v, want start", got)
	}
	if got := p.At(10); got != (Point{100, -50}) {
		t.Errorf("At(10) = %v, want end", got)
	}
	if got := p.At(5); got != (Point{50, -25}) {
		t.Errorf("At(5) = %v, want midpoint", got)
	}
}

func TestPlanPace(t *testing.T) {
	tests := []struct {
		name   string
		budget time.Duration
		cfg    Config
		want   time.Duration
	}{
		{"budget dominates", 200 * time.Millisecond, Config{Steps: 20, StepDelay: 0.001}, 10 * time.Millisecond},
		{"step delay dominates", 10 * time.Millisecond, Config{Steps: 20, StepDelay: 0.002}, 2 * time.Millisecond},
		{"zero budget", 0, Config{Steps: 4, StepDelay: 0}, 0},
	}
	for _, tt := range tests {
		p := NewPlan(Point{}, Point{X: 1}, tt.budget, tt.cfg)
		if p.Pace != tt.want {
			t.Errorf("%s: Pace = %s, want %s", tt.name, p.Pace, tt.want)
		}
		if p.Duration() != tt.want*time.Duration(tt.cfg.Steps) {
			t.Errorf("%s: Duration = %s", tt.name, p.Duration())
		}
	}
}

func TestWaypointsRestartable(t *testing.T) {
	p := NewPlan(Point{10, 10}, Point{20, 30}, 40*time.Millisecond, Config{Steps: 4})

	collect := func() []Point {
		var out []Point
		for _, pt := range p.Waypoints() {
			out = append(out, pt)
		}
		return out
	}

	first, second := collect(), collect()
	if len(first) != 5 || len(second) != 5 {
		t.Fatalf("waypoint counts = %d, %d, want 5", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("waypoint %d differs between iterations: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestWaypointsEarlyBreak(t *testing.T) {
	p := NewPlan(Point{}, Point{X: 100}, time.Second, Config{Steps: 10})
	seen := 0
	for i := range p.Waypoints() {
		seen++
		if i == 2 {
			break
		}
	}
	if seen != 3 {
		t.Errorf("saw %d waypoints before break, want 3", seen)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	for _, cfg := range []Config{{Steps: 0}, {Steps: 5, StepDelay: -1}} {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidConfig", cfg, err)
		}
	}
}
