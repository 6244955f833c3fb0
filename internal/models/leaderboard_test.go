package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := LeaderboardCursor{
		Rank:         42,
		UserPK:       uuid.New(),
		LoyaltyScore: 730,
	}

	decoded, err := DecodeCursor(cursor.Encode())
	if err != nil {
		t.Fatalf("DecodeCursor failed: %v", err)
	}
	if decoded != cursor {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, cursor)
	}
}

func TestDecodeCursorInvalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"empty", ""},
		{"too few parts", "1:abc"},
		{"bad rank", "one:" + uuid.New().String() + ":100"},
		{"bad user", "1:not-a-uuid:100"},
		{"bad score", "1:" + uuid.New().String() + ":lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCursor(tt.cursor); err == nil {
				t.Errorf("DecodeCursor(%q) should fail", tt.cursor)
			}
		})
	}
}

func TestCursorAfter(t *testing.T) {
	userA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	userB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	cursor := LeaderboardCursor{Rank: 10, UserPK: userA}

	if !cursor.After(LeaderboardEntry{Rank: 11, UserPK: userA}) {
		t.Error("higher rank should sort after the cursor")
	}
	if cursor.After(LeaderboardEntry{Rank: 9, UserPK: userB}) {
		t.Error("lower rank should not sort after the cursor")
	}
	if !cursor.After(LeaderboardEntry{Rank: 10, UserPK: userB}) {
		t.Error("equal rank with larger user key should sort after the cursor")
	}
	if cursor.After(LeaderboardEntry{Rank: 10, UserPK: userA}) {
		t.Error("the cursor row itself should not sort after the cursor")
	}
}
