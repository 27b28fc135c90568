// Package macro defines recorded input events and the macros built from them.
//
// A Macro is an ordered sequence of events. Every event carries the offset at
// which it should fire, measured from the start of the macro. Offsets are
// non-decreasing within a macro; Validate reports the first event that breaks
// that rule.
package macro

import (
	"fmt"
	"time"
)

// Kind identifies the variant of an Event.
type Kind string

const (
	KindPointer Kind = "mouse"
	KindKey     Kind = "keyboard"
	KindDelay   Kind = "delay"
)

// Action is the direction of a key event.
type Action string

const (
	ActionPress   Action = "press"
	ActionRelease Action = "release"
)

// Event is one timestamped action inside a macro. The concrete types are
// PointerClick, KeyAction and Delay.
type Event interface {
	Kind() Kind
	// Offset is the target time relative to the start of the macro.
	Offset() time.Duration

	withOffset(d time.Duration) Event
}

// PointerClick moves the pointer to (X, Y) and clicks Button.
type PointerClick struct {
	At     time.Duration
	X, Y   int
	Button string
}

func (e PointerClick) Kind() Kind                       { return KindPointer }
func (e PointerClick) Offset() time.Duration            { return e.At }
func (e PointerClick) withOffset(d time.Duration) Event { e.At = d; return e }

// KeyAction presses or releases a key. Special keys are referred to by a
// symbolic name ("enter", "esc"); everything else is the literal character.
type KeyAction struct {
	At      time.Duration
	Key     string
	Special bool
	Action  Action
}

func (e KeyAction) Kind() Kind                       { return KindKey }
func (e KeyAction) Offset() time.Duration            { return e.At }
func (e KeyAction) withOffset(d time.Duration) Event { e.At = d; return e }

// Delay carries no action. It is used as a timing anchor, usually as the
// last event of a recording.
type Delay struct {
	At time.Duration
}

func (e Delay) Kind() Kind                       { return KindDelay }
func (e Delay) Offset() time.Duration            { return e.At }
func (e Delay) withOffset(d time.Duration) Event { e.At = d; return e }

// IntegrityError reports an event that cannot be played.
type IntegrityError struct {
	Index  int
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("event %d: %s", e.Index, e.Reason)
}

// Macro is a named, ordered sequence of events.
type Macro struct {
	Name   string
	Events []Event
}

// New creates a macro from the given events.
func New(name string, events ...Event) Macro {
	return Macro{Name: name, Events: events}
}

// Len returns the number of events.
func (m Macro) Len() int {
	return len(m.Events)
}

// Duration returns the offset of the last event.
func (m Macro) Duration() time.Duration {
	if len(m.Events) == 0 {
		return 0
	}
	return m.Events[len(m.Events)-1].Offset()
}

// Clone returns a copy whose event slice is independent of m.
func (m Macro) Clone() Macro {
	events := make([]Event, len(m.Events))
	copy(events, m.Events)
	return Macro{Name: m.Name, Events: events}
}

// Validate checks every event and the ordering of offsets.
func (m Macro) Validate() error {
	var prev time.Duration
	for i, e := range m.Events {
		if reason := CheckEvent(e); reason != "" {
			return &IntegrityError{Index: i, Reason: reason}
		}
		if i > 0 && e.Offset() < prev {
			return &IntegrityError{
				Index:  i,
				Reason: fmt.Sprintf("offset %s is before previous event at %s", e.Offset(), prev),
			}
		}
		prev = e.Offset()
	}
	return nil
}

// CheckEvent returns a non-empty reason when e is missing required data.
func CheckEvent(e Event) string {
	if e == nil {
		return "nil event"
	}
	if e.Offset() < 0 {
		return "negative offset"
	}
	switch ev := e.(type) {
	case PointerClick:
		if ev.Button == "" {
			return "pointer click without button"
		}
	case KeyAction:
		if ev.Key == "" {
			return "key action without key"
		}
		if !ev.Special && len([]rune(ev.Key)) != 1 {
			return fmt.Sprintf("literal key %q must be a single character", ev.Key)
		}
		if ev.Action != ActionPress && ev.Action != ActionRelease {
			return fmt.Sprintf("unknown key action %q", ev.Action)
		}
	case Delay:
	default:
		return fmt.Sprintf("unsupported event type %T", e)
	}
	return ""
}
