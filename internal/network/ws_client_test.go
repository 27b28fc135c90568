package network

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"macroreplay/internal/api"
	"macroreplay/internal/config"
	"macroreplay/internal/input"
	"macroreplay/internal/macro"
	"macroreplay/internal/playback"
	"macroreplay/internal/protocol"
	"macroreplay/internal/store"

	"github.com/gorilla/websocket"
)

// TestFollowRemoteRun plays a macro through a real scheduler with a dry-run
// actuator and follows it over the websocket endpoint.
func TestFollowRemoteRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	cfg, err := config.NewManagerAt(filepath.Join(dir, "config.json"), logger)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Update(func(c *config.Config) { c.General.APIToken = "tok" })
	st, err := store.Open(filepath.Join(dir, "macros"), logger)
	if err != nil {
		t.Fatal(err)
	}
	st.Save(macro.New("tap",
		macro.KeyAction{At: 0, Key: "a", Action: macro.ActionPress},
		macro.KeyAction{At: 20 * time.Millisecond, Key: "a", Action: macro.ActionRelease},
		macro.Delay{At: 40 * time.Millisecond},
	))

	sched := playback.New(input.NewDryRun(logger), playback.WithLogger(logger))
	srv := api.NewServer(cfg, sched, st, logger)
	sched.OnProgress(srv.BroadcastProgress)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	client := NewWSClient(strings.TrimPrefix(ts.URL, "http://"), "tok", logger)
	client.SetReconnectDelay(20 * time.Millisecond)

	states := make(chan string, 16)
	progress := make(chan protocol.ProgressPayload, 16)
	client.OnState = func(p protocol.StatePayload) { states <- p.State }
	client.OnProgress = func(p protocol.ProgressPayload) { progress <- p }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	// the server greets new followers with its state
	select {
	case s := <-states:
		if s != "idle" {
			t.Errorf("initial state = %q", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no initial state")
	}
	if !client.IsConnected() {
		t.Error("client not connected")
	}

	m, _ := st.Load("tap")
	if err := sched.Start(m, cfg.Get().Playback, false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var fired []int
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case p := <-progress:
			if p.Done {
				if p.Outcome != "completed" || p.Fired != 3 {
					t.Errorf("final progress = %+v", p)
				}
				done = true
				continue
			}
			fired = append(fired, p.Index)
		case <-timeout:
			t.Fatalf("run not followed to completion, saw %v", fired)
		}
	}
	if len(fired) != 3 || fired[0] != 0 || fired[2] != 2 {
		t.Errorf("fired indexes = %v", fired)
	}

	cancel()
	select {
	case err := <-runDone:
		if err != context.Canceled {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestUnauthorizedFollower(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	cfg, _ := config.NewManagerAt(filepath.Join(dir, "config.json"), logger)
	cfg.Update(func(c *config.Config) { c.General.APIToken = "tok" })
	st, _ := store.Open(filepath.Join(dir, "macros"), logger)

	srv := api.NewServer(cfg, playback.New(input.NewDryRun(logger)), st, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	client := NewWSClient(strings.TrimPrefix(ts.URL, "http://"), "wrong", logger)
	err := client.connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("connect = %v, want unauthorized", err)
	}
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	var accepted atomic.Int32
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted.Add(1)
		conn.Close()
	}))
	defer ts.Close()

	client := NewWSClient(strings.TrimPrefix(ts.URL, "http://"), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	client.SetReconnectDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for accepted.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := accepted.Load(); n < 3 {
		t.Fatalf("connections accepted = %d, want at least 3", n)
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
