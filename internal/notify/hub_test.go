package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/auth"
)

func TestHubSendToUser(t *testing.T) {
	h := &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client, 1),
		unregister: make(chan *Client, 1),
	}

	id1 := uuid.New()
	id2 := uuid.New()

	c1 := &Client{userID: id1, role: auth.RoleCitizen, send: make(chan []byte, 4)}
	c2 := &Client{userID: id2, role: auth.RoleCitizen, send: make(chan []byte, 4)}

	h.clients[id1] = c1
	h.clients[id2] = c2

	msg := map[string]string{"kind": "appeal_sustained"}
	if err := h.SendToUser(id1, msg); err != nil {
		t.Fatalf("SendToUser error: %v", err)
	}

	select {
	case b := <-c1.send:
		var got map[string]string
		json.Unmarshal(b, &got)
		if got["kind"] != "appeal_sustained" {
			t.Fatalf("unexpected payload: %v", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for message to user 1")
	}

	select {
	case b := <-c2.send:
		t.Fatalf("user 2 should not have received %s", b)
	default:
	}
}

func TestHubConnectedUsers(t *testing.T) {
	h := &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client, 1),
		unregister: make(chan *Client, 1),
	}

	id := uuid.New()
	h.clients[id] = &Client{userID: id, send: make(chan []byte, 1)}

	if !h.IsConnected(id) {
		t.Fatal("Expected user to be connected")
	}
	if h.IsConnected(uuid.New()) {
		t.Fatal("Expected unknown user to be disconnected")
	}
	if len(h.ConnectedUsers()) != 1 {
		t.Fatalf("Expected 1 connected user, got %d", len(h.ConnectedUsers()))
	}
}
