package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a todo item; always owned by exactly one user.
// The json form is what goes to the cache and to API clients.
type Task struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
