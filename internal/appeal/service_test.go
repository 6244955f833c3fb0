package appeal

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/models"
)

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		name         string
		appealType   models.AppealType
		loyaltyScore int
		want         int
	}{
		{"sanction at loyalty 500 hits the cap", models.AppealTypeSanction, 500, 600},
		{"sanction above cap stays capped", models.AppealTypeSanction, 2000, 600},
		{"post rejection truncates", models.AppealTypePostRejection, 50, 37},
		{"zero loyalty gets base priority", models.AppealTypeFlag, 0, 50},
		{"negative loyalty clamps to base", models.AppealTypeContentRestoration, -200, 75},
		{"topic rejection mid tier", models.AppealTypeTopicRejection, 100, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PriorityFor(tt.appealType, tt.loyaltyScore)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("PriorityFor(%s, %d) = %d, want %d", tt.appealType, tt.loyaltyScore, got, tt.want)
			}
		})
	}
}

func TestPriorityFor_UnknownType(t *testing.T) {
	if _, err := PriorityFor("ban_appeal", 100); err == nil {
		t.Fatal("Expected error for unknown appeal type")
	}
}

func TestCanDecide(t *testing.T) {
	reviewer := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	other := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	tests := []struct {
		name    string
		status  models.AppealStatus
		by      *uuid.UUID
		decider uuid.UUID
		wantErr bool
	}{
		{"assigned reviewer decides", models.AppealStatusUnderReview, &reviewer, reviewer, false},
		{"different reviewer rejected", models.AppealStatusUnderReview, &reviewer, other, true},
		{"unassigned under_review rejected", models.AppealStatusUnderReview, nil, reviewer, true},
		{"pending rejected", models.AppealStatusPending, nil, reviewer, true},
		{"already sustained rejected", models.AppealStatusSustained, &reviewer, reviewer, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &models.Appeal{ID: uuid.New(), Status: tt.status, ReviewedBy: tt.by}
			err := CanDecide(a, tt.decider)
			if tt.wantErr {
				if !errors.Is(err, models.ErrInvalidState) {
					t.Errorf("Expected invalid state error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func eligibilityUser(score int) *models.User {
	return &models.User{LoyaltyScore: score}
}

func TestEvaluate_Eligible(t *testing.T) {
	now := time.Now().UTC()
	snap := EligibilitySnapshot{
		User:             eligibilityUser(0),
		AppealsToday:     2,
		ContentCreatedAt: now.Add(-48 * time.Hour),
	}

	result := Evaluate(snap, models.DefaultAppealRateLimits(), now)

	if !result.Eligible {
		t.Fatalf("Expected eligible, got reason %q", result.Reason)
	}
	if result.AppealsRemaining != 1 {
		t.Errorf("Expected 1 appeal remaining, got %d", result.AppealsRemaining)
	}
}

func TestEvaluate_AlreadyAppealed(t *testing.T) {
	now := time.Now().UTC()
	snap := EligibilitySnapshot{
		User:              eligibilityUser(0),
		AppealsForContent: 1,
		ContentCreatedAt:  now.Add(-time.Hour),
	}

	result := Evaluate(snap, models.DefaultAppealRateLimits(), now)

	if result.Eligible {
		t.Fatal("Expected ineligible")
	}
	if result.Reason != "already appealed" {
		t.Errorf("Expected reason %q, got %q", "already appealed", result.Reason)
	}
}

func TestEvaluate_DailyQuota(t *testing.T) {
	now := time.Now().UTC()
	limits := models.DefaultAppealRateLimits()

	// base quota is 3; the third appeal of the day is one too many
	snap := EligibilitySnapshot{
		User:             eligibilityUser(0),
		AppealsToday:     3,
		ContentCreatedAt: now.Add(-time.Hour),
	}
	result := Evaluate(snap, limits, now)
	if result.Eligible {
		t.Fatal("Expected ineligible at quota")
	}
	if result.Reason != "daily limit reached (3)" {
		t.Errorf("Expected quota reason, got %q", result.Reason)
	}

	// one below quota is allowed
	snap.AppealsToday = 2
	if result := Evaluate(snap, limits, now); !result.Eligible {
		t.Fatalf("Expected eligible one below quota, got %q", result.Reason)
	}
}

func TestEvaluate_LoyaltyBonusRaisesQuota(t *testing.T) {
	now := time.Now().UTC()
	limits := models.DefaultAppealRateLimits()

	// at loyalty 500 the quota is 3 + 1 + 2 = 6
	snap := EligibilitySnapshot{
		User:             eligibilityUser(500),
		AppealsToday:     5,
		ContentCreatedAt: now.Add(-time.Hour),
	}
	result := Evaluate(snap, limits, now)
	if !result.Eligible {
		t.Fatalf("Expected eligible with bonus quota, got %q", result.Reason)
	}
	if result.MaxAppealsPerDay != 6 {
		t.Errorf("Expected max daily 6, got %d", result.MaxAppealsPerDay)
	}

	snap.AppealsToday = 6
	if result := Evaluate(snap, limits, now); result.Eligible {
		t.Fatal("Expected ineligible at bonus quota")
	}
}

func TestEvaluate_QuotaMonotonicInScore(t *testing.T) {
	limits := models.DefaultAppealRateLimits()
	prev := 0
	for _, score := range []int{0, 50, 100, 400, 500, 900, 1000, 5000} {
		max := limits.MaxDailyFor(score)
		if max < prev {
			t.Errorf("Quota decreased at score %d: %d < %d", score, max, prev)
		}
		prev = max
	}
}

func TestEvaluate_DeniedCooldown(t *testing.T) {
	now := time.Now().UTC()
	denied := now.Add(-6 * time.Hour)
	snap := EligibilitySnapshot{
		User:             eligibilityUser(0),
		LastDeniedAt:     &denied,
		ContentCreatedAt: now.Add(-time.Hour),
	}

	result := Evaluate(snap, models.DefaultAppealRateLimits(), now)

	if result.Eligible {
		t.Fatal("Expected ineligible during cooldown")
	}
	if result.Reason != "cooldown active" {
		t.Errorf("Expected cooldown reason, got %q", result.Reason)
	}
	if result.CooldownExpiresAt == nil {
		t.Fatal("Expected cooldown expiry to be reported")
	}
	want := denied.Add(24 * time.Hour)
	if !result.CooldownExpiresAt.Equal(want) {
		t.Errorf("Expected expiry %v, got %v", want, result.CooldownExpiresAt)
	}
}

func TestEvaluate_CooldownExpired(t *testing.T) {
	now := time.Now().UTC()
	denied := now.Add(-25 * time.Hour)
	snap := EligibilitySnapshot{
		User:             eligibilityUser(0),
		LastDeniedAt:     &denied,
		ContentCreatedAt: now.Add(-time.Hour),
	}

	if result := Evaluate(snap, models.DefaultAppealRateLimits(), now); !result.Eligible {
		t.Fatalf("Expected eligible after cooldown, got %q", result.Reason)
	}
}

func TestEvaluate_ContentTooOld(t *testing.T) {
	now := time.Now().UTC()
	snap := EligibilitySnapshot{
		User:             eligibilityUser(0),
		ContentCreatedAt: now.Add(-8 * 24 * time.Hour),
	}

	result := Evaluate(snap, models.DefaultAppealRateLimits(), now)

	if result.Eligible {
		t.Fatal("Expected ineligible for old content")
	}
	if result.Reason != "content too old" {
		t.Errorf("Expected age reason, got %q", result.Reason)
	}
}

func TestEvaluate_AppealBan(t *testing.T) {
	now := time.Now().UTC()
	until := now.Add(3 * 24 * time.Hour)
	snap := EligibilitySnapshot{
		User:             &models.User{LoyaltyScore: 1000, AppealBannedUntil: &until},
		ContentCreatedAt: now.Add(-time.Hour),
	}

	result := Evaluate(snap, models.DefaultAppealRateLimits(), now)

	if result.Eligible {
		t.Fatal("Expected ineligible while banned")
	}
	if result.CooldownExpiresAt == nil || !result.CooldownExpiresAt.Equal(until) {
		t.Error("Expected ban expiry to be reported")
	}
}

func TestEvaluate_RuleOrder(t *testing.T) {
	// already-appealed outranks the daily quota in the reported reason
	now := time.Now().UTC()
	snap := EligibilitySnapshot{
		User:              eligibilityUser(0),
		AppealsToday:      10,
		AppealsForContent: 1,
		ContentCreatedAt:  now.Add(-time.Hour),
	}

	result := Evaluate(snap, models.DefaultAppealRateLimits(), now)
	if result.Reason != "already appealed" {
		t.Errorf("Expected already appealed to win, got %q", result.Reason)
	}
}
