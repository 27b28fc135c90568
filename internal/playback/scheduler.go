// Package playback replays macros against an input actuator with the
// recorded relative timing.
//
// A Scheduler runs one macro at a time on its own goroutine. Control calls
// (Pause, Resume, Stop) only flip the shared state; the worker notices the
// change at its next poll, which happens at least every poll interval while
// it waits for an event's target time.
//
// Every event's target is an offset from the start of the current
// iteration. Time spent paused is added to that origin when the run resumes,
// so the remaining events keep their spacing as if no pause had happened.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"macroreplay/internal/input"
	"macroreplay/internal/jitter"
	"macroreplay/internal/macro"
	"macroreplay/internal/motion"

	"github.com/google/uuid"
)

var (
	// ErrBusy is returned by Start when a run is already active.
	ErrBusy = errors.New("playback already in progress")

	errStopped = errors.New("playback stopped")
)

// smoothShare is the part of an event's delay spent gliding the pointer.
const smoothShare = 0.8

// Scheduler plays macros. The zero value is not usable; call New.
type Scheduler struct {
	actuator input.Actuator
	clock    Clock
	logger   *slog.Logger
	poll     time.Duration
	loopGap  time.Duration
	seed     *uint64

	mu         sync.Mutex
	state      State
	checkpoint *Checkpoint
	done       chan struct{}
	last       *RunSummary
	observers  []func(Progress)
}

// run is the worker-owned part of an active playback.
type run struct {
	id        uuid.UUID
	macro     macro.Macro
	cfg       Config
	loop      bool
	jit       *jitter.Jitterer
	index     int
	iteration int
	runStart  time.Time
	iterStart time.Time
	// offset is the jittered target of the last fired event in this iteration.
	offset  time.Duration
	fired   int
	skipped int
}

// New creates a scheduler that drives act.
func New(act input.Actuator, opts ...Option) *Scheduler {
	s := &Scheduler{
		actuator: act,
		clock:    realClock{},
		logger:   slog.Default(),
		poll:     DefaultPollInterval,
		loopGap:  DefaultLoopGap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnProgress registers an observer. Observers run on the playback goroutine
// and must return quickly.
func (s *Scheduler) OnProgress(fn func(Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start begins playing m on a new goroutine. The scheduler works on a copy
// of m. An empty macro is a no-op. Start fails with ErrBusy unless the
// scheduler is idle, and with an error wrapping the cause when cfg or m is
// invalid; in both cases the state is unchanged.
func (s *Scheduler) Start(m macro.Macro, cfg Config, loop bool) error {
	if m.Len() == 0 {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("macro %q: %w", m.Name, err)
	}

	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrBusy
	}
	prev := s.done
	s.mu.Unlock()

	// a stopped worker may still be unwinding
	if prev != nil {
		<-prev
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle || s.done != prev {
		return ErrBusy
	}

	now := s.clock.Now()
	r := &run{
		id:        uuid.New(),
		macro:     m.Clone(),
		cfg:       cfg,
		loop:      loop,
		jit:       jitter.New(cfg.Jitter, s.source()),
		iteration: 1,
		runStart:  now,
		iterStart: now,
	}
	s.state = Playing
	s.checkpoint = &Checkpoint{
		RunID:          r.id,
		Macro:          m.Name,
		Iteration:      1,
		Loop:           loop,
		IterationStart: now,
		RunStart:       now,
	}
	s.last = nil
	done := make(chan struct{})
	s.done = done

	s.logger.Info("playback started",
		slog.String("run_id", r.id.String()),
		slog.String("macro", m.Name),
		slog.Int("events", m.Len()),
		slog.Bool("loop", loop))

	go s.worker(r, done)
	return nil
}

// Pause suspends a playing run. It is a no-op in any other state.
func (s *Scheduler) Pause() {
	s.transition(Playing, Paused)
}

// Resume continues a paused run. It is a no-op in any other state.
func (s *Scheduler) Resume() {
	s.transition(Paused, Playing)
}

// Stop ends the active run, paused or not. The checkpoint is discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		s.state = Idle
		s.checkpoint = nil
	}
}

func (s *Scheduler) transition(from, to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == from {
		s.state = to
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Checkpoint returns a copy of the active run's checkpoint.
func (s *Scheduler) Checkpoint() (Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		return Checkpoint{}, false
	}
	return *s.checkpoint, true
}

// LastRun returns the summary of the most recently finished run.
func (s *Scheduler) LastRun() (RunSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return RunSummary{}, false
	}
	return *s.last, true
}

// Wait blocks until the active run finishes and returns its error. A run
// ended by Stop is not an error.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil {
		return s.last.Err
	}
	return nil
}

func (s *Scheduler) source() rand.Source {
	if s.seed != nil {
		return rand.NewPCG(*s.seed, *s.seed)
	}
	return nil
}

func (s *Scheduler) worker(r *run, done chan struct{}) {
	err := s.play(r)
	s.finish(r, err, done)
}

func (s *Scheduler) play(r *run) error {
	for {
		s.logger.Debug("iteration started",
			slog.String("macro", r.macro.Name),
			slog.Int("iteration", r.iteration))

		for r.index < r.macro.Len() {
			if err := s.fire(r); err != nil {
				return err
			}
		}

		s.logger.Info("iteration completed",
			slog.String("macro", r.macro.Name),
			slog.Int("iteration", r.iteration),
			slog.Duration("elapsed", s.clock.Now().Sub(r.iterStart)),
			slog.Duration("total", s.clock.Now().Sub(r.runStart)))

		if !r.loop {
			return nil
		}

		// pace the next iteration; the wait observes pause and stop
		r.iterStart = s.clock.Now()
		if err := s.waitUntil(r, s.loopGap); err != nil {
			return err
		}
		r.iterStart = r.iterStart.Add(s.loopGap)
		r.index = 0
		r.offset = 0
		r.iteration++
		s.commit(r)
	}
}

// fire waits for event r.index and dispatches it.
func (s *Scheduler) fire(r *run) error {
	i := r.index
	ev := r.macro.Events[i]

	raw := ev.Offset()
	if i > 0 {
		raw -= r.macro.Events[i-1].Offset()
	}
	if raw < 0 {
		return &macro.IntegrityError{Index: i, Reason: fmt.Sprintf("negative delay %s", raw)}
	}
	delay := r.jit.Delay(raw)
	target := r.offset + delay

	var err error
	switch e := ev.(type) {
	case macro.PointerClick:
		x, y := r.jit.Position(e.X, e.Y)
		if r.cfg.Motion.SmoothEnabled {
			err = s.glide(r, motion.Point{X: x, Y: y}, target, delay)
		} else if err = s.waitUntil(r, target); err == nil {
			err = s.actuate(r, "move pointer", func() error { return s.actuator.MovePointer(x, y) })
		}
		if err == nil {
			err = s.actuate(r, "click",
				func() error { return s.actuator.PressButton(e.Button) },
				func() error { return s.actuator.ReleaseButton(e.Button) })
		}

	case macro.KeyAction:
		if err = s.waitUntil(r, target); err == nil {
			if e.Action == macro.ActionPress {
				err = s.actuate(r, "press key", func() error { return s.actuator.PressKey(e.Key) })
			} else {
				err = s.actuate(r, "release key", func() error { return s.actuator.ReleaseKey(e.Key) })
			}
		}

	case macro.Delay:
		err = s.waitUntil(r, target)

	default:
		return &macro.IntegrityError{Index: i, Reason: fmt.Sprintf("unsupported event type %T", ev)}
	}

	var failed *actuatorError
	switch {
	case errors.As(err, &failed):
		r.skipped++
		s.logger.Warn("event skipped",
			slog.String("macro", r.macro.Name),
			slog.Int("index", i),
			slog.String("action", failed.action),
			slog.String("error", failed.err.Error()))
	case err != nil:
		return err
	default:
		r.fired++
	}

	r.offset = target
	r.index++
	s.commit(r)
	s.notify(Progress{
		RunID:     r.id,
		Macro:     r.macro.Name,
		State:     Playing,
		Iteration: r.iteration,
		Index:     i,
		Events:    r.macro.Len(),
		Nominal:   ev.Offset(),
		Total:     r.macro.Duration(),
		At:        s.clock.Now(),
	})
	return nil
}

// glide moves the pointer along an interpolated path that ends at target.
func (s *Scheduler) glide(r *run, to motion.Point, target, delay time.Duration) error {
	budget := max(time.Millisecond, time.Duration(float64(delay)*smoothShare))

	from := to
	if x, y, err := s.actuator.PointerPosition(); err == nil {
		from = motion.Point{X: x, Y: y}
	} else {
		s.logger.Debug("pointer position unavailable", slog.String("error", err.Error()))
	}

	plan := motion.NewPlan(from, to, budget, r.cfg.Motion)
	start := max(r.offset, target-plan.Duration())
	for i, pt := range plan.Waypoints() {
		if err := s.waitUntil(r, start+plan.Offset(i)); err != nil {
			return err
		}
		if err := s.actuate(r, "move pointer", func() error { return s.actuator.MovePointer(pt.X, pt.Y) }); err != nil {
			return err
		}
	}
	return s.waitUntil(r, target)
}

// waitUntil blocks until the iteration-relative offset at has passed. It
// returns errStopped if the run is stopped first. Pauses are absorbed by
// moving the iteration origin.
func (s *Scheduler) waitUntil(r *run, at time.Duration) error {
	for {
		switch s.State() {
		case Idle:
			return errStopped
		case Paused:
			if err := s.hold(r); err != nil {
				return err
			}
			continue
		}

		now := s.clock.Now()
		deadline := r.iterStart.Add(at)
		if !now.Before(deadline) {
			return nil
		}
		s.clock.Sleep(min(s.poll, deadline.Sub(now)))
	}
}

// hold blocks while the run is paused and shifts the iteration origin by
// the paused duration.
func (s *Scheduler) hold(r *run) error {
	pausedAt := s.clock.Now()
	s.mu.Lock()
	if s.checkpoint != nil {
		s.checkpoint.Index = r.index
		s.checkpoint.Iteration = r.iteration
		s.checkpoint.PausedAt = pausedAt
	}
	s.mu.Unlock()

	s.logger.Info("playback paused",
		slog.String("macro", r.macro.Name),
		slog.Int("index", r.index),
		slog.Int("iteration", r.iteration))
	s.notify(s.stateProgress(r, Paused, pausedAt))

	for {
		st := s.State()
		if st == Idle {
			return errStopped
		}
		if st == Playing {
			break
		}
		s.clock.Sleep(s.poll)
	}

	now := s.clock.Now()
	paused := now.Sub(pausedAt)
	r.iterStart = r.iterStart.Add(paused)

	s.mu.Lock()
	if s.checkpoint != nil {
		s.checkpoint.IterationStart = r.iterStart
		s.checkpoint.PausedAt = time.Time{}
	}
	s.mu.Unlock()

	s.logger.Info("playback resumed",
		slog.String("macro", r.macro.Name),
		slog.Int("index", r.index),
		slog.Duration("paused", paused))
	s.notify(s.stateProgress(r, Playing, now))
	return nil
}

func (s *Scheduler) stateProgress(r *run, st State, at time.Time) Progress {
	p := Progress{
		RunID:     r.id,
		Macro:     r.macro.Name,
		State:     st,
		Iteration: r.iteration,
		Index:     r.index - 1,
		Events:    r.macro.Len(),
		Total:     r.macro.Duration(),
		At:        at,
	}
	if r.index > 0 {
		p.Nominal = r.macro.Events[r.index-1].Offset()
	}
	return p
}

// commit records the worker's position in the checkpoint.
func (s *Scheduler) commit(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		return
	}
	s.checkpoint.Index = r.index
	s.checkpoint.Iteration = r.iteration
	s.checkpoint.IterationStart = r.iterStart
}

func (s *Scheduler) finish(r *run, err error, done chan struct{}) {
	summary := RunSummary{
		RunID:      r.id,
		Macro:      r.macro.Name,
		Loop:       r.loop,
		Iterations: r.iteration,
		Fired:      r.fired,
		Skipped:    r.skipped,
		Started:    r.runStart,
		Ended:      s.clock.Now(),
	}
	switch {
	case errors.Is(err, errStopped):
		summary.Stopped = true
	case err != nil:
		summary.Err = err
	}

	s.mu.Lock()
	s.state = Idle
	s.checkpoint = nil
	s.last = &summary
	s.mu.Unlock()

	attrs := []any{
		slog.String("run_id", r.id.String()),
		slog.String("macro", r.macro.Name),
		slog.String("outcome", summary.Outcome()),
		slog.Int("iterations", summary.Iterations),
		slog.Int("fired", summary.Fired),
		slog.Int("skipped", summary.Skipped),
	}
	if summary.Err != nil {
		s.logger.Error("playback failed", append(attrs, slog.String("error", summary.Err.Error()))...)
	} else {
		s.logger.Info("playback finished", attrs...)
	}

	s.notify(Progress{
		RunID:     r.id,
		Macro:     r.macro.Name,
		State:     Idle,
		Iteration: r.iteration,
		Index:     r.index - 1,
		Events:    r.macro.Len(),
		Total:     r.macro.Duration(),
		At:        summary.Ended,
		Done:      true,
		Summary:   &summary,
	})
	close(done)
}

func (s *Scheduler) notify(p Progress) {
	s.mu.Lock()
	observers := make([]func(Progress), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(p)
	}
}

// actuatorError marks a failed actuator call. The event is skipped and the
// run continues.
type actuatorError struct {
	action string
	err    error
}

func (e *actuatorError) Error() string {
	return fmt.Sprintf("%s: %v", e.action, e.err)
}

func (e *actuatorError) Unwrap() error {
	return e.err
}

// actuate runs calls in order and stops at the first failure.
func (s *Scheduler) actuate(r *run, action string, calls ...func() error) error {
	for _, call := range calls {
		if err := call(); err != nil {
			return &actuatorError{action: action, err: err}
		}
	}
	return nil
}
