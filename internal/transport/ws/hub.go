package ws

import (
	"cicdassess/internal/logger"
	"cicdassess/internal/observability"
	"encoding/json"
	"sync"
)

// Message is the WebSocket envelope format. Type is one of the service.Event* names.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans dashboard events out to every connected host
type Hub struct {
	conns map[*Connection]struct{}
	mu    sync.RWMutex
	log   *logger.Logger

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *Message
}

// Connection represents a WebSocket connection
type Connection struct {
	HostID string
	Send   chan []byte
	Hub    *Hub
}

// NewHub creates a new WebSocket hub
func NewHub(log *logger.Logger) *Hub {
	h := &Hub{
		conns:      make(map[*Connection]struct{}),
		log:        log.With("component", "ws_hub"),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn] = struct{}{}
			n := len(h.conns)
			h.mu.Unlock()
			observability.DashboardClients.Set(float64(n))
			h.log.Info("dashboard connected", "hostId", conn.HostID, "clients", n)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.conns[conn]; ok {
				delete(h.conns, conn)
				close(conn.Send)
			}
			n := len(h.conns)
			h.mu.Unlock()
			observability.DashboardClients.Set(float64(n))
			h.log.Info("dashboard disconnected", "hostId", conn.HostID, "clients", n)

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("failed to encode ws message", "type", msg.Type, "error", err)
				continue
			}
			h.mu.RLock()
			for conn := range h.conns {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// ClientCount returns the number of connected dashboards
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends an event to every dashboard (implements service.Broadcaster).
// It never blocks the caller; events are dropped when the hub is backed up.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("failed to encode ws payload", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- &Message{Type: msgType, Payload: data}:
	default:
		h.log.Warn("ws broadcast queue full, dropping event", "type", msgType)
	}
}
