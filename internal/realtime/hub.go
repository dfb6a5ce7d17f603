package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

// Hub maintains the set of active WebSocket clients and fans sync events
// out to the clients subscribed to the affected list.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a newly accepted connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister drops a client and closes its send channel so its write loop
// exits.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every client subscribed to its list. The event
// carries the actor id so receivers can suppress notifications for their own
// actions; delivery itself is unfiltered, all subscribers refresh.
func (h *Hub) Broadcast(event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.subscribed(event.ListID) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full; drop the message rather than block the hub
		}
	}
}

// ClientCount reports how many connections are live, for the health check.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
