// Package user provides the User domain entity.
package user

import (
	"strings"
	"time"
)

// User is a registered account. PasswordHash never leaves the auth gate.
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"password"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public is the user view handed to the player and API.
type Public struct {
	Email string `json:"email"`
}

// New creates a user with a normalized email.
func New(email, passwordHash string, now time.Time) *User {
	return &User{
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}
}

// Public returns the user without credentials.
func (u *User) Public() Public {
	return Public{Email: u.Email}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Domain returns the part after '@', or an empty string.
func Domain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
