package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"macroreplay/internal/playback"

	"github.com/google/uuid"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() {
		_ = l.Close()
	})
	return l
}

func entryAt(name string, started time.Time) Entry {
	return Entry{
		RunID:      uuid.New(),
		Macro:      name,
		Iterations: 1,
		Fired:      3,
		Outcome:    "completed",
		Started:    started,
		Ended:      started.Add(1500 * time.Millisecond),
	}
}

func TestRecordAndRecent(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	first := entryAt("login", base)
	second := entryAt("farm", base.Add(time.Minute))
	third := entryAt("login", base.Add(2*time.Minute))
	third.Outcome = "failed"
	third.Error = "event 2: negative delay"

	for _, e := range []Entry{first, second, third} {
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := l.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	if all[0].RunID != third.RunID || all[2].RunID != first.RunID {
		t.Errorf("entries not newest first: %+v", all)
	}
	if all[0].Error != third.Error || all[0].Outcome != "failed" {
		t.Errorf("failed entry = %+v", all[0])
	}
	if !all[2].Started.Equal(base) || all[2].Duration() != 1500*time.Millisecond {
		t.Errorf("times = %v..%v", all[2].Started, all[2].Ended)
	}

	limited, err := l.Recent(ctx, "", 2)
	if err != nil {
		t.Fatalf("Recent limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit 2 returned %d", len(limited))
	}

	logins, err := l.Recent(ctx, "login", 0)
	if err != nil {
		t.Fatalf("Recent by macro: %v", err)
	}
	if len(logins) != 2 {
		t.Errorf("login runs = %d, want 2", len(logins))
	}
}

func TestRecordReplacesRun(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	e := entryAt("login", time.UnixMilli(1_700_000_000_000))

	l.Record(ctx, e)
	e.Fired = 9
	if err := l.Record(ctx, e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, _ := l.Recent(ctx, "", 0)
	if len(got) != 1 || got[0].Fired != 9 {
		t.Errorf("entries = %+v", got)
	}
}

func TestRecordRequiresRunID(t *testing.T) {
	l := openTestLog(t)
	if err := l.Record(context.Background(), Entry{Macro: "x"}); err == nil {
		t.Error("expected error for entry without run id")
	}
}

func TestFromSummary(t *testing.T) {
	start := time.Now()
	sum := playback.RunSummary{
		RunID:      uuid.New(),
		Macro:      "farm",
		Loop:       true,
		Iterations: 4,
		Fired:      8,
		Skipped:    1,
		Err:        errors.New("boom"),
		Started:    start,
		Ended:      start.Add(time.Second),
	}
	e := FromSummary(sum)
	if e.Outcome != "failed" || e.Error != "boom" || e.Iterations != 4 || !e.Loop {
		t.Errorf("entry = %+v", e)
	}
}
