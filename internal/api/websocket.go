package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"macroreplay/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins; the token middleware guards the endpoint
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// WebSocketClient represents a connected progress follower
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string

	mu     sync.Mutex
	closed bool
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) logger() *slog.Logger {
	return m.server.logger
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.clientsMu.Unlock()
			m.logger().Info("ws: client registered", slog.String("remote", client.ip), slog.Int("clients", total))
			// new followers start from the current state
			if msg, err := protocol.NewMessage(protocol.TypeState, m.server.statePayload()); err == nil {
				client.enqueue(msg)
			}

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				client.close()
				m.logger().Info("ws: client unregistered", slog.String("remote", client.ip), slog.Int("clients", len(m.clients)))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				delete(m.clients, client)
				client.close()
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

// publish queues a message for every client. When the queue is full the
// message is dropped rather than stalling the playback goroutine.
func (m *WSManager) publish(t protocol.MessageType, payload any) {
	msg, err := protocol.NewMessage(t, payload)
	if err != nil {
		m.logger().Error("ws: failed to encode message", slog.String("type", string(t)), slog.String("error", err.Error()))
		return
	}
	select {
	case m.broadcast <- msg:
	case <-m.shutdown:
	default:
		m.logger().Warn("ws: broadcast queue full, dropping message", slog.String("type", string(t)))
	}
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		m.logger().Error("ws: failed to marshal broadcast message", slog.String("error", err.Error()))
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		if !client.trySend(jsonMsg) {
			client.close()
			delete(m.clients, client)
		}
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger().Warn("ws: failed to upgrade connection", slog.String("error", err.Error()))
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// trySend queues data without blocking. It reports false when the client's
// buffer is full or the client is closed.
func (c *WebSocketClient) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WebSocketClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WebSocketClient) enqueue(msg protocol.Message) {
	if data, err := json.Marshal(msg); err == nil {
		c.trySend(data)
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.logger().Warn("ws: read error", slog.String("error", err.Error()))
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.manager.logger().Warn("ws: invalid message format", slog.String("error", err.Error()))
		return
	}

	switch msg.Type {
	case protocol.TypeControl:
		var payload protocol.ControlPayload
		if err := msg.Decode(&payload); err != nil || !c.manager.server.apply(payload.Action) {
			c.reject("unknown control action")
			return
		}
		c.manager.logger().Info("ws: control", slog.String("action", payload.Action), slog.String("remote", c.ip))

	case protocol.TypeState:
		if reply, err := protocol.NewMessage(protocol.TypeState, c.manager.server.statePayload()); err == nil {
			c.enqueue(reply)
		}

	default:
		c.reject("unsupported message type " + string(msg.Type))
	}
}

func (c *WebSocketClient) reject(reason string) {
	if msg, err := protocol.NewMessage(protocol.TypeError, protocol.ErrorPayload{Message: reason}); err == nil {
		c.enqueue(msg)
	}
}
