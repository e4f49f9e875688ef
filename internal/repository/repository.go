package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoapi/internal/models"
)

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the email exists already has to return apperrors.ErrDuplicateEmail
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrRecordNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Activate or deactivate user account
	SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token to the repository
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Get token by its value
	// It returns the token even if it expired or revoked; apperrors.ErrRecordNotFound if not exists
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token revoked
	// Must be idempotent and must not overwrite already set 'revokedAt'
	// Returns number of tokens revoked by this call
	Revoke(ctx context.Context, tokenString string, revokedAt time.Time) (int64, error)

	// Delete tokens expired before 'before' or revoked before 'before'
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type CreateTaskParams struct {
	Title       string
	Description string
	Completed   bool
}

// Partial update: nil fields are left untouched
type UpdateTaskParams struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Task repository interface
// Every method is scoped by owner: task of other user is the same as not existed one
type TaskRepo interface {
	CreateTask(ctx context.Context, userID uuid.UUID, params CreateTaskParams) (models.Task, error)

	// List user tasks ordered by creation time, newest first
	ListTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error)

	// Has to return apperrors.ErrNotFound if there is no task with (id, userID)
	GetTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error)
	UpdateTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, params UpdateTaskParams) (models.Task, error)
	DeleteTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Task() TaskRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
