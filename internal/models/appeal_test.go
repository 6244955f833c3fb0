package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestAppealCreateValidate(t *testing.T) {
	valid := AppealCreate{
		ContentType: ContentTypePost,
		ContentPK:   uuid.New(),
		AppealType:  AppealTypePostRejection,
		Reason:      "The post was removed even though it follows every rule.",
	}

	tests := []struct {
		name    string
		mutate  func(a *AppealCreate)
		wantErr bool
	}{
		{"valid", func(a *AppealCreate) {}, false},
		{"reason too short", func(a *AppealCreate) { a.Reason = "too short" }, true},
		{"reason too long", func(a *AppealCreate) { a.Reason = strings.Repeat("x", 1001) }, true},
		{"reason at lower bound", func(a *AppealCreate) { a.Reason = strings.Repeat("x", 20) }, false},
		{"reason at upper bound", func(a *AppealCreate) { a.Reason = strings.Repeat("x", 1000) }, false},
		{"unknown appeal type", func(a *AppealCreate) { a.AppealType = "revenge" }, true},
		{"unknown content type", func(a *AppealCreate) { a.ContentType = "meme" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppealStatusTerminal(t *testing.T) {
	if AppealStatusPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	if AppealStatusUnderReview.Terminal() {
		t.Error("under_review should not be terminal")
	}
	if !AppealStatusSustained.Terminal() {
		t.Error("sustained should be terminal")
	}
	if !AppealStatusDenied.Terminal() {
		t.Error("denied should be terminal")
	}
}

func TestMaxDailyFor(t *testing.T) {
	limits := DefaultAppealRateLimits()

	tests := []struct {
		score int
		want  int
	}{
		{0, 3},
		{99, 3},
		{100, 4},
		{499, 4},
		{500, 6},
		{1000, 9},
		{5000, 9},
	}

	for _, tt := range tests {
		if got := limits.MaxDailyFor(tt.score); got != tt.want {
			t.Errorf("MaxDailyFor(%d) = %d, want %d", tt.score, got, tt.want)
		}
	}
}
