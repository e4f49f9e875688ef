package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const refreshTokenColumns = `id, user_id, token, created_at, expires_at, revoked_at`

const saveToken = `-- name: Save Refresh Token
INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + refreshTokenColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken, token.ID, token.UserID, token.Token, token.CreatedAt, token.ExpiresAt, token.RevokedAt)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("save refresh token: %w", dbError(err))
	}
	return saved, nil
}

const getToken = `-- name: GetToken by string itself
SELECT ` + refreshTokenColumns + `
FROM refresh_tokens
WHERE token = $1
`

// Get token
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrRecordNotFound
	default:
		return token, fmt.Errorf("get refresh token: %w", dbError(err))
	}
}

const revokeToken = `-- name: Revoke token if it not revoked
UPDATE refresh_tokens
SET revoked_at = $2
WHERE token = $1 AND revoked_at IS NULL
`

// Mark token revoked
// Already revoked tokens keep their first 'revoked_at'; revoking unknown token is not an error
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenString string, revokedAt time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeToken, tokenString, revokedAt)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh token: %w", dbError(err))
	}
	return tag.RowsAffected(), nil
}

const deleteStale = `-- name: Delete expired or revoked tokens
DELETE FROM refresh_tokens
WHERE expires_at < $1 OR revoked_at < $1
`

func (r *RefreshTokenRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteStale, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale refresh tokens: %w", dbError(err))
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
	return t, err
}
