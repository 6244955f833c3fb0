package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	Username             string     `json:"username" db:"username"`
	Email                string     `json:"email" db:"email"`
	PasswordHash         string     `json:"-" db:"password_hash"`
	Role                 string     `json:"role" db:"role"`
	LoyaltyScore         int        `json:"loyalty_score" db:"loyalty_score"`
	IsBanned             bool       `json:"is_banned" db:"is_banned"`
	TopicCreationEnabled bool       `json:"topic_creation_enabled" db:"topic_creation_enabled"`
	TopicsCreatedCount   int        `json:"topics_created_count" db:"topics_created_count"`
	AppealBannedUntil    *time.Time `json:"appeal_banned_until,omitempty" db:"appeal_banned_until"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// Validate checks basic user fields
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if len(u.Username) < 2 || len(u.Username) > 100 {
		return fmt.Errorf("username length invalid")
	}
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("invalid email")
	}
	return nil
}

// AppealBanActive reports whether the user is currently banned from
// submitting appeals.
func (u *User) AppealBanActive(now time.Time) bool {
	return u.AppealBannedUntil != nil && u.AppealBannedUntil.After(now)
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
