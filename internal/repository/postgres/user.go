package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, email, password_hash, first_name, last_name, is_active`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, password_hash, first_name, last_name)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), params.Email, params.HashedPassword, params.FirstName, params.LastName)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		err = dbError(err)
		if errors.Is(err, apperrors.ErrDuplicateField) {
			return user, apperrors.Wrap(apperrors.CodeDuplicateEmail, apperrors.ErrDuplicateEmail.Message, err)
		}
		return user, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const setUserActive = `-- name: SetUserActive
UPDATE users SET is_active = $2
WHERE id = $1
`

func (r *UserRepo) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.DB.Exec(ctx, setUserActive, id, active)
	switch {
	case err != nil:
		return fmt.Errorf("set user active: %w", dbError(err))
	case tag.RowsAffected() == 0:
		return apperrors.ErrRecordNotFound
	default:
		return nil
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrRecordNotFound
	default:
		return user, fmt.Errorf("get user: %w", dbError(err))
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName, &u.IsActive)
	return u, err
}
