package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sync-hire/backend/internal/engine"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Event names pushed to connected UIs.
const (
	EventSessionState = "session_state"
)

// Hub maintains interview_id -> set of connections and pushes session
// snapshots to them. Uses Redis pub/sub for horizontal scaling: events
// are published once, and every instance (this one included) delivers
// them to its local clients from its own subscription.
type Hub struct {
	// interviewID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per interview
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishInterviewEvent(interviewID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to interview channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeInterview(interviewID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// BroadcastSnapshot pushes a session snapshot to every UI watching the
// interview, on this instance and (via Redis) on the others. Satisfies
// sessions.Notifier.
func (h *Hub) BroadcastSnapshot(interviewID string, snap engine.Snapshot) {
	id, err := uuid.Parse(interviewID)
	if err != nil {
		return
	}
	h.PublishToInterview(id, EventSessionState, snap)
}

// Register adds a client to an interview room. Starts Redis subscription for
// this interview if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.InterviewID] == nil {
		h.rooms[c.InterviewID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeInterview(c.InterviewID, func(event string, payload []byte) {
				h.BroadcastToInterview(c.InterviewID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.InterviewID] = cancel
			}
		}
	}
	h.rooms[c.InterviewID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined interview", zap.String("client_id", c.ID), zap.String("interview_id", c.InterviewID.String()))
}

// Unregister removes a client from an interview room. Cancels Redis
// subscription when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.InterviewID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.InterviewID)
			if cancel, ok := h.subs[c.InterviewID]; ok {
				cancel()
				delete(h.subs, c.InterviewID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left interview", zap.String("client_id", c.ID), zap.String("interview_id", c.InterviewID.String()))
}

// BroadcastToInterview sends a message to all clients in an interview room (local only).
func (h *Hub) BroadcastToInterview(interviewID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[interviewID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishToInterview publishes an event through Redis only. Local clients
// receive it via this instance's own subscription, so each snapshot is
// delivered exactly once. Without Redis it falls back to a local broadcast.
func (h *Hub) PublishToInterview(interviewID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		_ = h.redis.PublishInterviewEvent(interviewID, event, data)
		return
	}
	h.BroadcastToInterview(interviewID, event, json.RawMessage(data))
}

// WatcherCount returns the number of connected clients for an interview.
func (h *Hub) WatcherCount(interviewID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[interviewID])
}

// SendToClient sends a message to a single client in an interview room.
func (h *Hub) SendToClient(interviewID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	clients := h.rooms[interviewID]
	c, ok := clients[clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
