// Package streambus implements the streaming/broadcast path: transcript
// persistence plus WS fan-out to subscribers of a user_id, with streaming
// assistant messages rewritten in place until they reach a terminal
// status. The Hub itself is a client registry keyed by user_id, with a
// buffered per-client send channel and broadcast-by-iteration.
package streambus

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is one WS frame pushed to a subscriber.
type Event struct {
	Type      string `json:"type"`
	ThreadKey string `json:"thread_key,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Client wraps one subscriber's WS connection with a buffered send queue,
// so a slow client can't block the broadcaster.
type Client struct {
	UserID string
	conn   *websocket.Conn
	send   chan Event
	logger *slog.Logger
}

func newClient(userID string, conn *websocket.Conn, logger *slog.Logger) *Client {
	c := &Client{UserID: userID, conn: conn, send: make(chan Event, 32), logger: logger}
	go c.writeLoop()
	return c
}

func (c *Client) writeLoop() {
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			c.logger.Debug("ws write failed, dropping client", "user_id", c.UserID, "error", err)
			return
		}
	}
}

func (c *Client) enqueue(ev Event) {
	select {
	case c.send <- ev:
	default:
		c.logger.Warn("ws client send buffer full, dropping event", "user_id", c.UserID)
	}
}

func (c *Client) Close() {
	close(c.send)
	_ = c.conn.Close()
}

// Hub tracks connected WS clients by user_id and fans events out to all
// of a user's live connections (a user may have several tabs/devices).
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // userID -> set of clients
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[string]map[*Client]struct{}), logger: logger}
}

// Register adds a new WS connection for userID and returns the Client
// handle to read incoming frames from (the caller owns the read loop).
func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	c := newClient(userID, conn, h.logger)
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	c.Close()
}

// Broadcast pushes an event to every connection registered for userID.
// In BACKEND connection mode there are no registered clients and this is
// a no-op.
func (h *Hub) Broadcast(userID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		c.enqueue(ev)
	}
}

// HasSubscribers reports whether userID has at least one live connection.
func (h *Hub) HasSubscribers(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
