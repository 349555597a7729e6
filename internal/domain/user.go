package domain

import "time"

// User represents a blog account. Accounts are immutable after signup.
type User struct {
	ID           string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}
