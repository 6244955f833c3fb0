package auth

import (
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "citizen-one-glorious-passw0rd"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if hash == "" {
		t.Fatal("Expected hash to be generated")
	}

	if hash == password {
		t.Fatal("Hash should not equal plain password")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "citizen-one-glorious-passw0rd"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if err := CheckPassword(hash, password); err != nil {
		t.Errorf("Expected password to match, got error: %v", err)
	}

	if err := CheckPassword(hash, "citizen-two-guessing"); err == nil {
		t.Error("Expected error for wrong password")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	hash, err := HashPassword("")
	if err != nil {
		t.Fatalf("Expected no error for empty password, got %v", err)
	}

	if hash == "" {
		t.Fatal("Expected hash to be generated even for empty password")
	}
}

func TestHashPassword_Unique(t *testing.T) {
	first, err := HashPassword("citizen-one-glorious-passw0rd")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := HashPassword("citizen-one-glorious-passw0rd")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// bcrypt salts per call
	if first == second {
		t.Error("Expected distinct hashes for the same password")
	}
}
