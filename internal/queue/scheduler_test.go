package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/models"
)

func TestComputePriority(t *testing.T) {
	tests := []struct {
		name         string
		loyaltyScore int
		want         int64
	}{
		{"zero score", 0, 0},
		{"positive score sorts earlier", 100, -100},
		{"negative score sorts later", -50, 50},
		{"high loyalty", 1000, -1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputePriority(tt.loyaltyScore); got != tt.want {
				t.Errorf("ComputePriority(%d) = %d, want %d", tt.loyaltyScore, got, tt.want)
			}
		})
	}
}

func TestComputePriority_Ordering(t *testing.T) {
	// A higher-loyalty author must get a smaller priority value, since
	// queues serve the lowest value first.
	high := ComputePriority(500)
	low := ComputePriority(10)

	if high >= low {
		t.Errorf("Expected priority for score 500 (%d) to be below score 10 (%d)", high, low)
	}
}

func TestConversationKey_Stable(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	if models.ConversationKey(a, b) != models.ConversationKey(b, a) {
		t.Error("Expected conversation key to be order independent")
	}
}

func TestConversationKey_Format(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	want := "users_00000000-0000-0000-0000-000000000001_00000000-0000-0000-0000-000000000002"
	if got := models.ConversationKey(b, a); got != want {
		t.Errorf("ConversationKey = %q, want %q", got, want)
	}
}
