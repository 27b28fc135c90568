package playback

import (
	"time"

	"github.com/google/uuid"
)

// Checkpoint is the resumable position of the active run. It exists from
// Start until the run terminates.
type Checkpoint struct {
	RunID uuid.UUID `json:"run_id"`
	Macro string    `json:"macro"`
	// Index is the next event to fire. Events before it have completed.
	Index     int  `json:"index"`
	Iteration int  `json:"iteration"`
	Loop      bool `json:"loop"`
	// IterationStart is the wall-clock origin of the current iteration,
	// already shifted by any time spent paused.
	IterationStart time.Time `json:"iteration_start"`
	RunStart       time.Time `json:"run_start"`
	// PausedAt is set while the run is paused.
	PausedAt time.Time `json:"paused_at,omitzero"`
}

// Progress is delivered to observers after each event fires, when the run
// pauses or resumes, and once when the run ends.
type Progress struct {
	RunID     uuid.UUID `json:"run_id"`
	Macro     string    `json:"macro"`
	State     State     `json:"state"`
	Iteration int       `json:"iteration"`
	// Index is the most recently fired event, -1 before the first.
	Index  int `json:"index"`
	Events int `json:"events"`
	// Nominal is the recorded offset of event Index, before jitter.
	Nominal time.Duration `json:"nominal"`
	Total   time.Duration `json:"total"`
	At      time.Time     `json:"at"`
	// Done is set on the final notification, which also carries Summary.
	Done    bool        `json:"done"`
	Summary *RunSummary `json:"summary,omitempty"`
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID      uuid.UUID `json:"run_id"`
	Macro      string    `json:"macro"`
	Loop       bool      `json:"loop"`
	Iterations int       `json:"iterations"`
	Fired      int       `json:"fired"`
	Skipped    int       `json:"skipped"`
	Stopped    bool      `json:"stopped"`
	Err        error     `json:"-"`
	Started    time.Time `json:"started"`
	Ended      time.Time `json:"ended"`
}

// Outcome names how the run ended.
func (r RunSummary) Outcome() string {
	switch {
	case r.Err != nil:
		return "failed"
	case r.Stopped:
		return "stopped"
	default:
		return "completed"
	}
}
