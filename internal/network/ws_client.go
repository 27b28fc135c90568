// Package network follows remote replay services: it finds them on the
// local network and streams their playback progress over websockets.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"macroreplay/internal/protocol"

	"github.com/gorilla/websocket"
)

// DefaultReconnectDelay is the wait between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// WSClient follows playback progress on a remote control surface
type WSClient struct {
	hostAddr       string
	token          string
	logger         *slog.Logger
	send           chan protocol.Message
	reconnectDelay time.Duration

	// Callbacks run on the read goroutine; set them before Run
	OnProgress func(protocol.ProgressPayload)
	OnState    func(protocol.StatePayload)
	OnMacros   func(protocol.MacrosPayload)
	OnError    func(protocol.ErrorPayload)

	mu          sync.Mutex
	isConnected bool
}

// NewWSClient creates a new WebSocket client for hostAddr (host:port)
func NewWSClient(hostAddr, token string, logger *slog.Logger) *WSClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSClient{
		hostAddr:       hostAddr,
		token:          token,
		logger:         logger,
		send:           make(chan protocol.Message, 100),
		reconnectDelay: DefaultReconnectDelay,
	}
}

// SetReconnectDelay changes the wait between connection attempts.
func (c *WSClient) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		c.reconnectDelay = d
	}
}

// Run connects and processes messages, reconnecting after failures, until
// ctx is done.
func (c *WSClient) Run(ctx context.Context) error {
	for {
		if err := c.connect(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("ws client: disconnected", slog.String("host", c.hostAddr), slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
			c.logger.Info("ws client: attempting reconnection", slog.String("host", c.hostAddr))
		}
	}
}

func (c *WSClient) connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	c.logger.Info("ws client: connecting", slog.String("url", u.String()))

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return errors.New("unauthorized: check the API token")
		}
		return err
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info("ws client: connected", slog.String("host", c.hostAddr))

	// connCtx ends the write pump when either side drops the connection
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		c.writePump(connCtx, conn)
	}()

	// unblock the reader when the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err = c.readPump(conn)
	cancel()
	<-connDone
	return err
}

func (c *WSClient) setConnected(v bool) {
	c.mu.Lock()
	c.isConnected = v
	c.mu.Unlock()
}

func (c *WSClient) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	// the server pings; answering extends our own deadline too
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("ws client: invalid message", slog.String("error", err.Error()))
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case msg := <-c.send:
			jsonMsg, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("ws client: marshal error", slog.String("error", err.Error()))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, jsonMsg); err != nil {
				c.logger.Warn("ws client: write error", slog.String("error", err.Error()))
				return
			}

		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeProgress:
		var payload protocol.ProgressPayload
		if err := msg.Decode(&payload); err != nil {
			c.logger.Warn("ws client: invalid progress payload", slog.String("error", err.Error()))
			return
		}
		if c.OnProgress != nil {
			c.OnProgress(payload)
		}

	case protocol.TypeState:
		var payload protocol.StatePayload
		if err := msg.Decode(&payload); err != nil {
			c.logger.Warn("ws client: invalid state payload", slog.String("error", err.Error()))
			return
		}
		if c.OnState != nil {
			c.OnState(payload)
		}

	case protocol.TypeMacros:
		var payload protocol.MacrosPayload
		if err := msg.Decode(&payload); err == nil && c.OnMacros != nil {
			c.OnMacros(payload)
		}

	case protocol.TypeError:
		var payload protocol.ErrorPayload
		msg.Decode(&payload)
		c.logger.Warn("ws client: server rejected message", slog.String("reason", payload.Message))
		if c.OnError != nil {
			c.OnError(payload)
		}
	}
}

// SendControl asks the remote scheduler to pause, resume or stop. It is
// queued until a connection is available.
func (c *WSClient) SendControl(action string) {
	msg, _ := protocol.NewMessage(protocol.TypeControl, protocol.ControlPayload{Action: action})
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("ws client: send queue full, dropping control", slog.String("action", action))
	}
}

// IsConnected returns true if client is connected to host
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}
