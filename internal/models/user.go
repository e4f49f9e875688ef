package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	IsActive       bool
}

// Public returns user copy that is safe to pass around: without password hash
func (u User) Public() User {
	u.HashedPassword = ""
	return u
}
