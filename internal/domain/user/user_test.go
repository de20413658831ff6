package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := New("  Alice@Gmail.com ", "hash", now)

	assert.Equal(t, "alice@gmail.com", u.Email)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.Equal(t, now, u.CreatedAt)
	assert.Equal(t, Public{Email: "alice@gmail.com"}, u.Public())
}

func TestDomain(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{email: "a@gmail.com", expected: "gmail.com"},
		{email: "a@Mail.Yahoo.com", expected: "mail.yahoo.com"},
		{email: "no-at-sign", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.expected, Domain(tt.email))
		})
	}
}
