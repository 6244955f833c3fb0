package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTService_GenerateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	userID := uuid.New()
	token, err := service.GenerateToken(userID, "citizen_one", RoleCitizen)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if token == "" {
		t.Fatal("Expected token to be generated")
	}
}

func TestJWTService_ValidateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	userID := uuid.New()
	token, err := service.GenerateToken(userID, "moderator_one", RoleModerator)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected userID %s, got %s", userID.String(), claims.UserID.String())
	}
	if claims.Role != RoleModerator {
		t.Errorf("Expected role moderator, got %s", claims.Role)
	}
}

func TestJWTService_ValidateToken_Invalid(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	_, err := service.ValidateToken("invalid.token.here")
	if err == nil {
		t.Fatal("Expected error for invalid token")
	}
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret-key", -1)

	userID := uuid.New()
	token, err := service.GenerateToken(userID, "citizen_one", RoleCitizen)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	time.Sleep(time.Millisecond * 100)

	_, err = service.ValidateToken(token)
	if err == nil {
		t.Fatal("Expected error for expired token")
	}
}

func TestRole_Allows(t *testing.T) {
	tests := []struct {
		name     string
		holder   Role
		required Role
		want     bool
	}{
		{"citizen can act as citizen", RoleCitizen, RoleCitizen, true},
		{"citizen cannot act as moderator", RoleCitizen, RoleModerator, false},
		{"moderator can act as citizen", RoleModerator, RoleCitizen, true},
		{"moderator can act as moderator", RoleModerator, RoleModerator, true},
		{"moderator cannot act as admin", RoleModerator, RoleAdmin, false},
		{"admin can act as moderator", RoleAdmin, RoleModerator, true},
		{"admin can act as admin", RoleAdmin, RoleAdmin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.holder.Allows(tt.required); got != tt.want {
				t.Errorf("Allows(%s, %s) = %v, want %v", tt.holder, tt.required, got, tt.want)
			}
		})
	}
}
