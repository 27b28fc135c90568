package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"macroreplay/internal/playback"

	"github.com/google/uuid"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(TypeControl, ControlPayload{Action: ActionPause})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"type":"control","payload":{"action":"pause"}}` {
		t.Errorf("wire form = %s", data)
	}

	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var ctl ControlPayload
	if err := got.Decode(&ctl); err != nil || ctl.Action != ActionPause {
		t.Errorf("Decode = %+v, %v", ctl, err)
	}
}

func TestMessageWithoutPayload(t *testing.T) {
	msg, _ := NewMessage(TypeState, nil)
	data, _ := json.Marshal(msg)
	if string(data) != `{"type":"state"}` {
		t.Errorf("wire form = %s", data)
	}
	var st StatePayload
	if err := msg.Decode(&st); err != nil {
		t.Errorf("Decode empty payload: %v", err)
	}
}

func TestFromProgress(t *testing.T) {
	id := uuid.New()
	p := playback.Progress{
		RunID:     id,
		Macro:     "login",
		State:     playback.Idle,
		Iteration: 2,
		Index:     3,
		Events:    4,
		Nominal:   1500 * time.Millisecond,
		Total:     2 * time.Second,
		Done:      true,
		Summary:   &playback.RunSummary{Fired: 7, Skipped: 1, Err: errors.New("event 3: bad")},
	}

	got := FromProgress(p)
	want := ProgressPayload{
		RunID:     id.String(),
		Macro:     "login",
		State:     "idle",
		Iteration: 2,
		Index:     3,
		Events:    4,
		Nominal:   1.5,
		Total:     2,
		Done:      true,
		Outcome:   "failed",
		Fired:     7,
		Skipped:   1,
		Error:     "event 3: bad",
	}
	if got != want {
		t.Errorf("FromProgress = %+v, want %+v", got, want)
	}
}
