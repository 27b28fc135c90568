package macro

import (
	"cmp"
	"slices"
	"time"
)

// Timing selects how Append positions the appended events.
type Timing int

const (
	// TimingRelative re-bases the source so its first event lands on the base
	// time, keeping the source's own spacing.
	TimingRelative Timing = iota
	// TimingAbsolute adds the base time to every source offset.
	TimingAbsolute
)

// DefaultAppendGap is the pause inserted between two appended macros.
const DefaultAppendGap = 500 * time.Millisecond

// Normalize shifts every offset so the first event fires at zero.
func (m Macro) Normalize() Macro {
	out := m.Clone()
	if len(out.Events) == 0 {
		return out
	}
	first := out.Events[0].Offset()
	for i, e := range out.Events {
		out.Events[i] = e.withOffset(e.Offset() - first)
	}
	return out
}

// Append returns m followed by src. The source starts gap after the latest
// offset in m. The merged events are stably re-sorted by offset.
func (m Macro) Append(src Macro, gap time.Duration, timing Timing) Macro {
	out := m.Clone()
	if len(src.Events) == 0 {
		return out
	}

	var last time.Duration
	for _, e := range m.Events {
		last = max(last, e.Offset())
	}
	base := last + gap

	first := src.Events[0].Offset()
	for _, e := range src.Events {
		first = min(first, e.Offset())
	}

	for _, e := range src.Events {
		at := e.Offset() + base
		if timing == TimingRelative {
			at = base + (e.Offset() - first)
		}
		out.Events = append(out.Events, e.withOffset(at))
	}

	slices.SortStableFunc(out.Events, func(a, b Event) int {
		return cmp.Compare(a.Offset(), b.Offset())
	})
	return out
}
