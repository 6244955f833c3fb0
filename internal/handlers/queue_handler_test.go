package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/models"
)

func TestClaimBody_EmptyQueue(t *testing.T) {
	body := claimBody(nil)

	v, ok := body["item"]
	if !ok {
		t.Fatal("Expected item key in an empty claim response")
	}
	if v != nil {
		t.Fatalf("Expected null item for an empty claim, got %v", v)
	}
}

func TestClaimBody_ClaimedItem(t *testing.T) {
	item := &models.QueueItem{ID: uuid.New()}

	body := claimBody(item)

	got, ok := body["item"].(*models.QueueItem)
	if !ok {
		t.Fatalf("Expected queue item in claim response, got %v", body["item"])
	}
	if got.ID != item.ID {
		t.Errorf("Expected item %s, got %s", item.ID, got.ID)
	}
}
