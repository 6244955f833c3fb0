package loyalty

import (
	"testing"

	"github.com/robotoverlord/backend/internal/models"
)

func TestDeltaFor(t *testing.T) {
	tests := []struct {
		name        string
		contentType models.ContentType
		outcome     models.EventOutcome
		want        int
	}{
		{"approved post", models.ContentTypePost, models.OutcomeApproved, 1},
		{"rejected post", models.ContentTypePost, models.OutcomeRejected, -1},
		{"removed post", models.ContentTypePost, models.OutcomeRemoved, -1},
		{"approved topic", models.ContentTypeTopic, models.OutcomeApproved, 5},
		{"rejected topic", models.ContentTypeTopic, models.OutcomeRejected, -5},
		{"approved message", models.ContentTypePrivateMessage, models.OutcomeApproved, 1},
		{"removed message", models.ContentTypePrivateMessage, models.OutcomeRemoved, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeltaFor(tt.contentType, tt.outcome)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("DeltaFor(%s, %s) = %d, want %d", tt.contentType, tt.outcome, got, tt.want)
			}
		})
	}
}

func TestDeltaFor_UnknownContentType(t *testing.T) {
	if _, err := DeltaFor("video", models.OutcomeApproved); err == nil {
		t.Fatal("Expected error for unknown content type")
	}
}

func TestDeltaFor_AppealOutcomeRejected(t *testing.T) {
	// Appeal deltas are policy owned by the appeal layer, not the weight table.
	if _, err := DeltaFor(models.ContentTypePost, models.OutcomeAppealSustained); err == nil {
		t.Fatal("Expected error for appeal outcome")
	}
}

func TestThresholdsFrom(t *testing.T) {
	stats := &models.SystemStats{Top10PercentThreshold: 260}

	got := thresholdsFrom(DefaultThresholds, stats)
	if got.TopicCreation != 260 {
		t.Errorf("Expected topic creation threshold 260, got %d", got.TopicCreation)
	}
	if got.PriorityModeration != 500 || got.ExtendedAppeals != 1000 {
		t.Errorf("Expected fixed tiers 500/1000, got %d/%d", got.PriorityModeration, got.ExtendedAppeals)
	}
}

func TestThresholdsFrom_FallsBackWithoutStats(t *testing.T) {
	if got := thresholdsFrom(DefaultThresholds, nil); got != DefaultThresholds {
		t.Errorf("Expected defaults without stats, got %+v", got)
	}

	// an empty population reports a zero threshold, which must not unlock
	// topic creation for everyone
	empty := &models.SystemStats{}
	if got := thresholdsFrom(DefaultThresholds, empty); got.TopicCreation != DefaultThresholds.TopicCreation {
		t.Errorf("Expected fallback threshold %d, got %d", DefaultThresholds.TopicCreation, got.TopicCreation)
	}
}

func TestEventTypeFor(t *testing.T) {
	tests := []struct {
		contentType models.ContentType
		want        models.EventType
	}{
		{models.ContentTypePost, models.EventTypePostModeration},
		{models.ContentTypeTopic, models.EventTypeTopicModeration},
		{models.ContentTypePrivateMessage, models.EventTypeMessageModeration},
	}

	for _, tt := range tests {
		if got := EventTypeFor(tt.contentType); got != tt.want {
			t.Errorf("EventTypeFor(%s) = %s, want %s", tt.contentType, got, tt.want)
		}
	}
}
