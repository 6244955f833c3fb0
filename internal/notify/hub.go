package notify

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/auth"
	"github.com/robotoverlord/backend/internal/cache"
)

// Hub maintains the set of connected clients and routes notification
// intents to them. Intents arrive over Redis pub/sub so every API instance
// sees submissions and decisions made on its peers.
type Hub struct {
	// Registered clients
	clients map[uuid.UUID]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Redis client for pub/sub
	redis *cache.RedisClient

	mu sync.RWMutex
}

// NewHub creates a new Hub
func NewHub(redis *cache.RedisClient) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		redis:      redis,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	go h.subscribeToIntents()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.userID] = client
			h.mu.Unlock()

			log.Printf("Notification client registered: %s", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.userID]; ok {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.mu.Unlock()

			log.Printf("Notification client unregistered: %s", client.userID)
		}
	}
}

// subscribeToIntents fans Redis intents out to connected clients. The
// target user always receives the intent; moderators receive every intent
// so dashboards update live.
func (h *Hub) subscribeToIntents() {
	pubsub := h.redis.SubscribeIntents()
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var intent cache.NotificationIntent
		if err := json.Unmarshal([]byte(msg.Payload), &intent); err != nil {
			log.Printf("Failed to decode notification intent: %v", err)
			continue
		}

		h.mu.RLock()
		for _, client := range h.clients {
			if client.userID != intent.UserPK && !client.role.Allows(auth.RoleModerator) {
				continue
			}
			select {
			case client.send <- []byte(msg.Payload):
			default:
				// client's send channel is full, skip
			}
		}
		h.mu.RUnlock()
	}
}

// SendToUser delivers a payload to one connected user
func (h *Hub) SendToUser(userID uuid.UUID, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if ok {
		select {
		case client.send <- data:
		default:
			// client's send channel is full, skip
		}
	}

	return nil
}

// ConnectedUsers returns the IDs of currently connected users
func (h *Hub) ConnectedUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]uuid.UUID, 0, len(h.clients))
	for userID := range h.clients {
		userIDs = append(userIDs, userID)
	}

	return userIDs
}

// IsConnected checks whether a user has a live connection
func (h *Hub) IsConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[userID]
	return ok
}
