package hub

import (
	"encoding/json"
	"sync"

	"socialprofiles/backend/internal/metrics"

	"go.uber.org/zap"
)

// Event types delivered to the other party of a relationship change.
const (
	EventInvitationReceived  = "invitation_received"
	EventInvitationAccepted  = "invitation_accepted"
	EventInvitationRejected  = "invitation_rejected"
	EventRelationshipRemoved = "relationship_removed"
)

// clientBuffer is how many events a slow stream can fall behind before events are dropped.
const clientBuffer = 16

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client represents a single open event stream of a profile.
// It's essentially a channel that the SSE handler will listen to.
type Client chan []byte

// NewClient returns a buffered Client.
func NewClient() Client {
	return make(Client, clientBuffer)
}

// Hub fans relationship events out to the streams of each profile.
type Hub struct {
	profiles map[uint]map[Client]bool
	mu       sync.RWMutex
	closed   bool
	logger   *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		profiles: make(map[uint]map[Client]bool),
		logger:   logger,
	}
}

// Subscribe adds a stream for profileID. On a closed hub the client is closed right away.
func (h *Hub) Subscribe(profileID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(client)
		return
	}

	if _, ok := h.profiles[profileID]; !ok {
		h.profiles[profileID] = make(map[Client]bool)
	}
	if !h.profiles[profileID][client] {
		h.profiles[profileID][client] = true
		metrics.EventSubscribers.Inc()
	}
}

// Unsubscribe removes a stream of profileID and closes it.
func (h *Hub) Unsubscribe(profileID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.profiles[profileID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client)
			metrics.EventSubscribers.Dec()
			if len(clients) == 0 {
				delete(h.profiles, profileID)
			}
		}
	}
}

// Subscribers returns how many streams profileID has open.
func (h *Hub) Subscribers(profileID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.profiles[profileID])
}

// Publish sends an event to every stream of profileID. It never blocks;
// a stream whose buffer is full misses the event.
func (h *Hub) Publish(profileID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.profiles[profileID]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client <- messageBytes:
		default:
			h.logger.Warn("event dropped for slow stream",
				zap.Uint("profile_id", profileID),
				zap.String("type", event.Type),
			)
		}
	}
}

// Close ends every open stream and refuses new ones. Streams reading their
// client see the channel closed and return.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, clients := range h.profiles {
		for client := range clients {
			close(client)
			metrics.EventSubscribers.Dec()
		}
	}
	h.profiles = make(map[uint]map[Client]bool)
	h.logger.Info("hub closed")
}
