package models

import (
	"testing"
	"time"
)

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{Username: "dissident", Email: "d@state.gov"}, false},
		{"missing username", User{Email: "d@state.gov"}, true},
		{"username too short", User{Username: "x", Email: "d@state.gov"}, true},
		{"missing email", User{Username: "dissident"}, true},
		{"bad email", User{Username: "dissident", Email: "nope"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppealBanActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	u := User{}
	if u.AppealBanActive(now) {
		t.Error("no ban set should not be active")
	}

	u.AppealBannedUntil = &past
	if u.AppealBanActive(now) {
		t.Error("expired ban should not be active")
	}

	u.AppealBannedUntil = &future
	if !u.AppealBanActive(now) {
		t.Error("future ban should be active")
	}
}
