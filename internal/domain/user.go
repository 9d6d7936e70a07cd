package domain

import "time"

// User represents a registered account. PasswordHash is never serialized
// into API responses; handlers project it out.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
