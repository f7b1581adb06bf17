// Package push streams quest lifecycle events to WebSocket clients. The hub
// subscribes to the event bus and fans each event out as a JSON text frame;
// slow or dead clients are dropped rather than allowed to stall the bus.
package push

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/questbridge/internal/config"
	"github.com/lawnchairsociety/questbridge/internal/events"
	"github.com/lawnchairsociety/questbridge/internal/logger"
)

const (
	// writeTimeout bounds a single frame write before the client is dropped
	writeTimeout = 5 * time.Second

	// sendBuffer is the per-client queue; a full queue drops the client
	sendBuffer = 32
)

// client is one connected event-stream consumer
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans bus events out to connected WebSocket clients
type Hub struct {
	wsConfig *config.WebSocketConfig

	mu          sync.Mutex
	clients     map[*client]bool
	unsubscribe func()
	closed      bool
}

// NewHub creates a hub subscribed to the bus
func NewHub(bus events.Bus, wsConfig *config.WebSocketConfig) *Hub {
	h := &Hub{
		wsConfig: wsConfig,
		clients:  make(map[*client]bool),
	}
	h.unsubscribe = bus.Subscribe(h.broadcast)
	return h
}

// broadcast queues the event for every connected client. Handlers run on the
// publisher's goroutine, so this never blocks: a client with a full queue is
// disconnected instead.
func (h *Hub) broadcast(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Failed to encode event", "event", ev.Name, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			logger.Warning("Dropping slow event stream client", "remote_addr", c.conn.RemoteAddr().String())
			h.removeLocked(c)
		}
	}
}

// HandleWS upgrades the request and registers the connection for event push
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := h.wsConfig.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("Event stream connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warning("Failed to upgrade event stream connection", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	h.mu.Unlock()

	logger.Info("Event stream client connected", "remote_addr", conn.RemoteAddr().String())

	go h.writeLoop(c)
	go h.readLoop(c)
}

// writeLoop drains the client's queue onto its connection
func (h *Hub) writeLoop(c *client) {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c)
			c.conn.Close()
			return
		}
	}
	c.conn.Close()
}

// readLoop discards inbound frames and detects disconnects. The stream is
// one-way; clients have nothing to say.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked unregisters a client. Callers must hold h.mu. Closing the send
// channel ends the write loop, which closes the connection.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from the bus and disconnects every client
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}
