// Package models holds the persisted row types shared by server repositories
// and services.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account row. The surrogate ID doubles as the WebAuthn user
// handle (its 16 raw bytes), so usernames can change without invalidating
// registered credentials. PasswordHash is nil for users that only ever
// authenticated with WebAuthn.
type User struct {
	ID           uuid.UUID
	Username     string
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Handle returns the 16-byte opaque user handle presented to authenticators
// in place of the username.
func (u *User) Handle() []byte {
	handle := make([]byte, len(u.ID))
	copy(handle, u.ID[:])
	return handle
}
