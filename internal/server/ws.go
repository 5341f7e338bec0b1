package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// WSMessage is the event envelope pushed to WebSocket subscribers. Clients
// switch on `type` ("measurement", "state", "error") and treat `data` as an
// opaque JSON object.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSClient pairs a websocket connection with a write mutex; gorilla forbids
// concurrent writes on one Conn.
type WSClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WSHub fans measurement events out to every subscriber. The server is local
// and single-user, so an in-memory set behind a RWMutex is enough.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*WSClient]struct{})}
}

func (h *WSHub) Add(conn *websocket.Conn) *WSClient {
	c := &WSClient{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Remove unregisters a client and closes its connection.
func (h *WSHub) Remove(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Broadcast marshals once and writes the raw bytes to each client. Write
// failures are ignored; the per-connection read loop notices the disconnect
// and removes the client.
func (h *WSHub) Broadcast(msg WSMessage) {
	b, _ := json.Marshal(msg)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, b)
		c.mu.Unlock()
	}
}
