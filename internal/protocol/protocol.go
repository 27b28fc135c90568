// Package protocol defines the websocket messages exchanged between the
// control surface and progress followers.
package protocol

import (
	"encoding/json"

	"macroreplay/internal/playback"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeProgress is broadcast after every fired event and when a run ends
	TypeProgress MessageType = "progress"

	// TypeState is sent to a client when it connects, and on pause/resume
	TypeState MessageType = "state"

	// TypeControl is sent by a client to pause, resume or stop the run
	TypeControl MessageType = "control"

	// TypeMacros notifies followers that a stored macro changed
	TypeMacros MessageType = "macros"

	// TypeError reports a rejected client message
	TypeError MessageType = "error"
)

// Control actions carried by TypeControl.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionStop   = "stop"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a message of type t.
func NewMessage(t MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// ProgressPayload is the payload for TypeProgress. Times are in seconds.
type ProgressPayload struct {
	RunID     string  `json:"run_id"`
	Macro     string  `json:"macro"`
	State     string  `json:"state"`
	Iteration int     `json:"iteration"`
	Index     int     `json:"index"`
	Events    int     `json:"events"`
	Nominal   float64 `json:"nominal_s"`
	Total     float64 `json:"total_s"`
	Done      bool    `json:"done,omitempty"`
	Outcome   string  `json:"outcome,omitempty"`
	Fired     int     `json:"fired,omitempty"`
	Skipped   int     `json:"skipped,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// FromProgress converts a scheduler notification.
func FromProgress(p playback.Progress) ProgressPayload {
	out := ProgressPayload{
		RunID:     p.RunID.String(),
		Macro:     p.Macro,
		State:     p.State.String(),
		Iteration: p.Iteration,
		Index:     p.Index,
		Events:    p.Events,
		Nominal:   p.Nominal.Seconds(),
		Total:     p.Total.Seconds(),
		Done:      p.Done,
	}
	if s := p.Summary; s != nil {
		out.Outcome = s.Outcome()
		out.Fired = s.Fired
		out.Skipped = s.Skipped
		if s.Err != nil {
			out.Error = s.Err.Error()
		}
	}
	return out
}

// StatePayload is the payload for TypeState.
type StatePayload struct {
	State      string               `json:"state"`
	Checkpoint *playback.Checkpoint `json:"checkpoint,omitempty"`
}

// ControlPayload is the payload for TypeControl
type ControlPayload struct {
	Action string `json:"action"`
}

// MacrosPayload is the payload for TypeMacros
type MacrosPayload struct {
	Name string `json:"name"`
	Op   string `json:"op"`
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Message string `json:"message"`
}
