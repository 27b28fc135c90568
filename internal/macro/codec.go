package macro

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"macroreplay/internal/input"

	"github.com/tidwall/gjson"
)

// On-disk records. Field order matches the files written by the recorder.
type pointerRecord struct {
	Type   Kind    `json:"type"`
	Action string  `json:"action"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Button string  `json:"button"`
	Time   float64 `json:"time"`
}

type keyRecord struct {
	Type      Kind    `json:"type"`
	Action    Action  `json:"action"`
	Key       string  `json:"key"`
	IsSpecial bool    `json:"is_special"`
	Time      float64 `json:"time"`
}

type delayRecord struct {
	Type Kind    `json:"type"`
	Time float64 `json:"time"`
}

// Encode renders events as an indented JSON array, one object per event.
func Encode(events []Event) ([]byte, error) {
	records := make([]any, 0, len(events))
	for i, e := range events {
		switch ev := e.(type) {
		case PointerClick:
			records = append(records, pointerRecord{
				Type: KindPointer, Action: "click",
				X: ev.X, Y: ev.Y, Button: ev.Button,
				Time: seconds(ev.At),
			})
		case KeyAction:
			records = append(records, keyRecord{
				Type: KindKey, Action: ev.Action,
				Key: ev.Key, IsSpecial: ev.Special,
				Time: seconds(ev.At),
			})
		case Delay:
			records = append(records, delayRecord{Type: KindDelay, Time: seconds(ev.At)})
		default:
			return nil, &IntegrityError{Index: i, Reason: fmt.Sprintf("unsupported event type %T", e)}
		}
	}
	return json.MarshalIndent(records, "", "    ")
}

// Decode parses an event array. A missing or mistyped field is reported as an
// *IntegrityError carrying the index of the offending object.
func Decode(data []byte) ([]Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("macro: document is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, errors.New("macro: document is not an event array")
	}

	var (
		events []Event
		err    error
	)
	root.ForEach(func(_, value gjson.Result) bool {
		ev, reason := decodeEvent(value)
		if reason != "" {
			err = &IntegrityError{Index: len(events), Reason: reason}
			return false
		}
		events = append(events, ev)
		return true
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func decodeEvent(v gjson.Result) (Event, string) {
	if !v.IsObject() {
		return nil, "event is not an object"
	}
	kind := v.Get("type")
	if kind.Type != gjson.String {
		return nil, "missing type"
	}
	t := v.Get("time")
	if t.Type != gjson.Number {
		return nil, "missing or non-numeric time"
	}
	at := duration(t.Float())

	switch Kind(kind.String()) {
	case KindPointer:
		x, y, button := v.Get("x"), v.Get("y"), v.Get("button")
		if x.Type != gjson.Number || y.Type != gjson.Number {
			return nil, "pointer event without x/y"
		}
		if button.Type != gjson.String || button.String() == "" {
			return nil, "pointer event without button"
		}
		return PointerClick{At: at, X: int(x.Int()), Y: int(y.Int()), Button: button.String()}, ""

	case KindKey:
		key, action := v.Get("key"), v.Get("action")
		if key.Type != gjson.String || key.String() == "" {
			return nil, "keyboard event without key"
		}
		act := Action(action.String())
		if act != ActionPress && act != ActionRelease {
			return nil, fmt.Sprintf("keyboard event with unknown action %q", action.String())
		}
		special := v.Get("is_special")
		isSpecial := special.Bool()
		if !special.Exists() {
			isSpecial = input.IsSpecialKey(key.String())
		}
		return KeyAction{At: at, Key: key.String(), Special: isSpecial, Action: act}, ""

	case KindDelay:
		return Delay{At: at}, ""

	default:
		return nil, fmt.Sprintf("unknown event type %q", kind.String())
	}
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func duration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
