package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/Abdulkalam0018/roadresq/internal/metrics"
)

// Envelope is the wire form of every socket event, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub maps user identities to their live connections. Rooms are keyed by
// identity, not connection: every connection a user holds joins the same room
// and receives every push addressed to them. Membership is process-local and
// ephemeral; Mongo remains the source of truth.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{rooms: make(map[string]map[*Client]struct{}), log: log}
}

// Join adds c to userID's room.
func (h *Hub) Join(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[userID] == nil {
		h.rooms[userID] = make(map[*Client]struct{})
	}
	h.rooms[userID][c] = struct{}{}
}

// Leave removes c from userID's room, dropping the room when it empties.
func (h *Hub) Leave(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room := h.rooms[userID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, userID)
		}
	}
}

// Connections reports how many live connections userID has in the room.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// PushToUser delivers an event to every live connection in userID's room.
// Best-effort: with no live connection the push is dropped, and a client
// whose buffer is full is skipped rather than blocking the sender.
func (h *Hub) PushToUser(userID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorw("marshal push payload", "event", event, "err", err)
		return
	}
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.log.Errorw("marshal push envelope", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[userID]))
	for c := range h.rooms[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(b) {
			metrics.PushDropped.Inc()
			h.log.Warnw("push dropped, client buffer full", "user_id", userID, "event", event)
		}
	}
}
