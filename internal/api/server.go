// Package api provides the HTTP control surface for the playback scheduler.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"macroreplay/internal/config"
	"macroreplay/internal/jitter"
	"macroreplay/internal/macro"
	"macroreplay/internal/motion"
	"macroreplay/internal/playback"
	"macroreplay/internal/protocol"
	"macroreplay/internal/store"
)

// Player is the scheduler's control surface.
type Player interface {
	Start(m macro.Macro, cfg playback.Config, loop bool) error
	Pause()
	Resume()
	Stop()
	State() playback.State
	Checkpoint() (playback.Checkpoint, bool)
	LastRun() (playback.RunSummary, bool)
}

// Macros is the macro source the server plays from.
type Macros interface {
	List() ([]store.Info, error)
	Load(name string) (macro.Macro, error)
}

// Server provides HTTP API for remote control
type Server struct {
	configMgr *config.Manager
	player    Player
	macros    Macros
	logger    *slog.Logger
	wsMgr     *WSManager

	hubOnce   sync.Once
	mu        sync.Mutex
	http      *http.Server
	lastState playback.State
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, player Player, macros Macros, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		configMgr: configMgr,
		player:    player,
		macros:    macros,
		logger:    logger,
	}
	s.wsMgr = newWSManager(s)
	return s
}

// Handler returns the routed, authenticated handler. The websocket hub is
// started on first use.
func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.wsMgr.start() })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/macros", s.handleMacros)
	mux.HandleFunc("POST /api/play", s.handlePlay)
	mux.HandleFunc("POST /api/pause", s.control(protocol.ActionPause))
	mux.HandleFunc("POST /api/resume", s.control(protocol.ActionResume))
	mux.HandleFunc("POST /api/stop", s.control(protocol.ActionStop))
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("GET /ws", s.wsMgr.handleWebSocket)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start listens on addr and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error("api: failed to listen", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Info("api: serving", slog.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("api: server stopped", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	s.wsMgr.stop()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("api: recovered panic", slog.Any("panic", err), slog.String("path", r.URL.Path))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("api: request", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("remote", r.RemoteAddr))

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if token := s.configMgr.Get().General.APIToken; token != "" {
			if r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State      playback.State       `json:"state"`
	Checkpoint *playback.Checkpoint `json:"checkpoint,omitempty"`
	LastRun    *playback.RunSummary `json:"last_run,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
}

func (s *Server) status() StatusResponse {
	resp := StatusResponse{State: s.player.State()}
	if cp, ok := s.player.Checkpoint(); ok {
		resp.Checkpoint = &cp
	}
	if last, ok := s.player.LastRun(); ok {
		resp.LastRun = &last
		if last.Err != nil {
			resp.LastError = last.Err.Error()
		}
	}
	return resp
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleMacros handles GET /api/macros
func (s *Server) handleMacros(w http.ResponseWriter, r *http.Request) {
	infos, err := s.macros.List()
	if err != nil {
		s.logger.Error("api: list macros", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if infos == nil {
		infos = []store.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// handlePlay handles POST /api/play?macro=<name>&loop=<bool>
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("macro")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing macro parameter"))
		return
	}
	loop := false
	if v := r.URL.Query().Get("loop"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid loop parameter %q", v))
			return
		}
		loop = b
	}

	m, err := s.macros.Load(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.logger.Info("api: play request", slog.String("macro", name), slog.Bool("loop", loop), slog.String("remote", r.RemoteAddr))
	if err := s.player.Start(m, s.configMgr.Get().Playback, loop); err != nil {
		s.logger.Warn("api: play rejected", slog.String("macro", name), slog.String("error", err.Error()))
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "ok",
		"macro":  name,
		"events": m.Len(),
		"loop":   loop,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var integrity *macro.IntegrityError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &integrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, jitter.ErrInvalidConfig),
		errors.Is(err, motion.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// control returns a handler for the fire-and-forget controls. Invalid
// transitions are not errors; the response reports the resulting state.
func (s *Server) control(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.apply(action)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"state":  s.player.State().String(),
		})
	}
}

func (s *Server) apply(action string) bool {
	s.logger.Info("api: control", slog.String("action", action))
	switch action {
	case protocol.ActionPause:
		s.player.Pause()
	case protocol.ActionResume:
		s.player.Resume()
	case protocol.ActionStop:
		s.player.Stop()
	default:
		return false
	}
	return true
}

// handleConfig handles GET (read) and POST (update) for the playback
// options. The API token is never echoed back.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.configMgr.Get()
		cfg.General.APIToken = ""
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPost:
		var next playback.Config
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&next); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid configuration data: %w", err))
			return
		}

		s.logger.Info("api: configuration update", slog.String("remote", r.RemoteAddr))
		if err := s.configMgr.Update(func(c *config.Config) { c.Playback = next }); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		if err := s.configMgr.Save(); err != nil {
			s.logger.Error("api: failed to save configuration", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, errors.New("failed to save configuration"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// BroadcastProgress forwards a scheduler notification to websocket clients,
// followed by a state message whenever the run state changed. It never
// blocks the caller.
func (s *Server) BroadcastProgress(p playback.Progress) {
	s.wsMgr.publish(protocol.TypeProgress, protocol.FromProgress(p))

	s.mu.Lock()
	changed := p.State != s.lastState
	s.lastState = p.State
	s.mu.Unlock()
	if changed {
		s.wsMgr.publish(protocol.TypeState, s.statePayload())
	}
}

// BroadcastMacroChange notifies websocket clients of a stored macro change.
func (s *Server) BroadcastMacroChange(c store.Change) {
	s.wsMgr.publish(protocol.TypeMacros, protocol.MacrosPayload{Name: c.Name, Op: string(c.Op)})
}

func (s *Server) statePayload() protocol.StatePayload {
	st := protocol.StatePayload{State: s.player.State().String()}
	if cp, ok := s.player.Checkpoint(); ok {
		st.Checkpoint = &cp
	}
	return st
}
