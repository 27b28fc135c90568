package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"macroreplay/internal/config"
	"macroreplay/internal/history"
	"macroreplay/internal/macro"
	"macroreplay/internal/protocol"
	"macroreplay/internal/store"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

type env struct {
	t      *testing.T
	config string
	store  *store.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "macros"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return &env{t: t, config: filepath.Join(dir, "config.json"), store: st}
}

func (e *env) save(m macro.Macro) {
	e.t.Helper()
	if err := e.store.Save(m); err != nil {
		e.t.Fatalf("Save(%s): %v", m.Name, err)
	}
}

func (e *env) run(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCmd("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func (e *env) mustRun(args ...string) string {
	e.t.Helper()
	out, errOut, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("%v: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func typing(name string, start time.Duration) macro.Macro {
	return macro.New(name,
		macro.KeyAction{At: start, Key: "a", Action: macro.ActionPress},
		macro.KeyAction{At: start + ms(20), Key: "a", Action: macro.ActionRelease},
		macro.PointerClick{At: start + ms(40), X: 10, Y: 20, Button: "left"},
	)
}

func TestListAndShow(t *testing.T) {
	e := newEnv(t)
	if out := e.mustRun("list"); !strings.Contains(out, "No macros") {
		t.Errorf("empty list = %q", out)
	}

	e.save(typing("login", 0))
	out := e.mustRun("list")
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "login") {
		t.Errorf("list = %q", out)
	}

	var infos []store.Info
	if err := json.Unmarshal([]byte(e.mustRun("list", "--json")), &infos); err != nil {
		t.Fatalf("list --json: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "login" || infos[0].Events != 3 {
		t.Errorf("list --json = %+v", infos)
	}

	out = e.mustRun("show", "login")
	for _, want := range []string{"login: 3 events", `press "a"`, "left click at (10, 20)"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}
}

func TestShowMissing(t *testing.T) {
	e := newEnv(t)
	_, errOut, err := e.run("show", "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(errOut, "Hint:") {
		t.Errorf("stderr = %q, want a hint", errOut)
	}
}

func TestNormalize(t *testing.T) {
	e := newEnv(t)
	e.save(typing("late", ms(700)))

	out := e.mustRun("normalize", "late")
	if !strings.Contains(out, "shifted by 700ms") {
		t.Errorf("normalize = %q", out)
	}
	m, err := e.store.Load("late")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Events[0].Offset(); got != 0 {
		t.Errorf("first offset = %v, want 0", got)
	}
	if got := m.Duration(); got != ms(40) {
		t.Errorf("duration = %v, want 40ms", got)
	}
}

func TestAppend(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want time.Duration // offset of the first appended event
	}{
		{"relative default gap", nil, ms(40) + macro.DefaultAppendGap},
		{"relative custom gap", []string{"--gap", "1s"}, ms(40) + time.Second},
		{"absolute", []string{"--absolute", "--gap", "0s"}, ms(40) + ms(300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.save(typing("first", 0))
			e.save(typing("second", ms(300)))

			e.mustRun(append([]string{"append", "first", "second"}, tt.args...)...)
			m, err := e.store.Load("first")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if m.Len() != 6 {
				t.Fatalf("events = %d, want 6", m.Len())
			}
			if got := m.Events[3].Offset(); got != tt.want {
				t.Errorf("appended offset = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppendRejectsNegativeGap(t *testing.T) {
	e := newEnv(t)
	e.save(typing("first", 0))
	e.save(typing("second", 0))
	if _, _, err := e.run("append", "first", "second", "--gap", "-1s"); err == nil {
		t.Error("negative gap accepted")
	}
}

func TestRm(t *testing.T) {
	e := newEnv(t)
	e.save(typing("gone", 0))
	e.mustRun("rm", "gone")
	if _, err := e.store.Load("gone"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load after rm = %v, want ErrNotFound", err)
	}
	if _, _, err := e.run("rm", "gone"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second rm = %v, want ErrNotFound", err)
	}
}

func TestConfigGetSet(t *testing.T) {
	e := newEnv(t)

	if out := e.mustRun("config", "get", "playback.jitter.enabled"); strings.TrimSpace(out) != "false" {
		t.Errorf("default jitter.enabled = %q", out)
	}
	e.mustRun("config", "set", "playback.jitter.enabled", "true")
	e.mustRun("config", "set", "general.pause_hotkey", "Ctrl+Shift+P")

	// a fresh command reads the saved file
	if out := e.mustRun("config", "get", "playback.jitter.enabled"); strings.TrimSpace(out) != "true" {
		t.Errorf("jitter.enabled after set = %q", out)
	}
	if out := e.mustRun("config", "get", "general.pause_hotkey"); strings.TrimSpace(out) != `"Ctrl+Shift+P"` {
		t.Errorf("pause_hotkey after set = %q", out)
	}

	var cfg config.Config
	if err := json.Unmarshal([]byte(e.mustRun("config", "get")), &cfg); err != nil {
		t.Fatalf("config get: %v", err)
	}
	if !cfg.Playback.Jitter.Enabled {
		t.Error("full config does not show the change")
	}
}

func TestConfigSetRejects(t *testing.T) {
	tests := []struct {
		path, value string
		want        error
	}{
		{"playback.jitter.time_jitter_percent", "-5", config.ErrInvalidConfig},
		{"general.poll_interval_ms", "0", config.ErrInvalidConfig},
		{"general.no_such_key", "1", config.ErrUnknownKey},
	}
	for _, tt := range tests {
		e := newEnv(t)
		if _, _, err := e.run("config", "set", tt.path, tt.value); !errors.Is(err, tt.want) {
			t.Errorf("set %s=%s: err = %v, want %v", tt.path, tt.value, err, tt.want)
		}
	}
}

func TestPlayDryRunRecordsHistory(t *testing.T) {
	e := newEnv(t)
	e.save(typing("login", 0))

	out, errOut, err := e.run("play", "login", "--dry-run")
	if err != nil {
		t.Fatalf("play: %v\nstderr: %s", err, errOut)
	}
	if !strings.Contains(out, "login completed: 3 events fired") {
		t.Errorf("play = %q", out)
	}
	if !strings.Contains(errOut, "actuator=dry-run") {
		t.Errorf("stderr does not show dry-run actions:\n%s", errOut)
	}

	var entries []history.Entry
	if err := json.Unmarshal([]byte(e.mustRun("history", "--json")), &entries); err != nil {
		t.Fatalf("history --json: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	if got := entries[0]; got.Macro != "login" || got.Outcome != "completed" || got.Fired != 3 {
		t.Errorf("history entry = %+v", got)
	}

	if out := e.mustRun("history"); !strings.Contains(out, "login") || !strings.Contains(out, "completed") {
		t.Errorf("history = %q", out)
	}
}

func TestPlayRejectsBrokenMacro(t *testing.T) {
	e := newEnv(t)
	path, err := e.store.Path("broken")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	writeFile(t, path, `[{"type":"keyboard","action":"press","key":"a","time":1},{"type":"keyboard","action":"release","key":"a","time":0.5}]`)

	_, errOut, err := e.run("play", "broken", "--dry-run")
	var ierr *macro.IntegrityError
	if !errors.As(err, &ierr) || ierr.Index != 1 {
		t.Fatalf("err = %v, want integrity error at event 1", err)
	}
	if !strings.Contains(errOut, "event 1") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestHistoryEmpty(t *testing.T) {
	e := newEnv(t)
	if out := e.mustRun("history"); !strings.Contains(out, "No runs recorded") {
		t.Errorf("history = %q", out)
	}
}

func TestServeNeedsSomethingToServe(t *testing.T) {
	e := newEnv(t)
	e.mustRun("config", "set", "general.api_enabled", "false")
	if _, _, err := e.run("serve"); err == nil || !strings.Contains(err.Error(), "nothing to serve") {
		t.Errorf("serve = %v", err)
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{out: &buf}
	p.progress(protocol.ProgressPayload{Macro: "login", State: "playing", Iteration: 1, Index: 0, Events: 3, Nominal: 0, Total: 0.04})
	p.progress(protocol.ProgressPayload{Macro: "login", Done: true, Outcome: "failed", Fired: 1, Skipped: 2, Error: "boom"})
	p.macros(protocol.MacrosPayload{Name: "login", Op: "write"})
	p.state(protocol.StatePayload{State: "idle"})

	want := "login [playing] 1/3 at 0.00s of 0.04s (iteration 1)\n" +
		"login failed: 1 fired, 2 skipped: boom\n" +
		"macro login: write\n" +
		"state idle\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestRemotePort(t *testing.T) {
	tests := []struct {
		addr string
		port int
		ok   bool
	}{
		{":18090", 18090, true},
		{"0.0.0.0:9000", 9000, true},
		{"192.168.1.5:9000", 9000, true},
		{"127.0.0.1:18090", 0, false},
		{"[::1]:18090", 0, false},
		{"localhost:18090", 0, false},
		{"127.0.0.1:0", 0, false},
		{"garbage", 0, false},
	}
	for _, tt := range tests {
		port, ok := remotePort(tt.addr)
		if port != tt.port || ok != tt.ok {
			t.Errorf("remotePort(%q) = %d, %v, want %d, %v", tt.addr, port, ok, tt.port, tt.ok)
		}
	}
}

func TestAutostartCommands(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("writes to the user's registry")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	e := newEnv(t)
	if out := e.mustRun("autostart", "status"); !strings.Contains(out, "disabled") {
		t.Errorf("status = %q", out)
	}
	e.mustRun("autostart", "enable")
	if out := e.mustRun("autostart", "status"); !strings.Contains(out, "enabled") {
		t.Errorf("status after enable = %q", out)
	}
	e.mustRun("autostart", "disable")
	if out := e.mustRun("autostart", "status"); !strings.Contains(out, "disabled") {
		t.Errorf("status after disable = %q", out)
	}
}

func TestDiscoverNothing(t *testing.T) {
	e := newEnv(t)
	// nothing listens on port 1 of the loopback interface
	if out := e.mustRun("discover", "127.0.0.1:1"); !strings.Contains(out, "No replay services found") {
		t.Errorf("discover = %q", out)
	}
}
