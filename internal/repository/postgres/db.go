package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/todoapi/internal/apperrors"
)

// Anything that can run queries: pool, connection or transaction
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Convert database error to operational one
// Not found rows have different meaning for different repos, so caller decides what to do with pgx.ErrNoRows
func dbError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return apperrors.Wrap(apperrors.CodeDatabase, "Database request failed", err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return apperrors.Wrap(apperrors.CodeDuplicateField, apperrors.ErrDuplicateField.Message, err)
	case pgerrcode.ForeignKeyViolation:
		return apperrors.Wrap(apperrors.CodeInvalidReference, apperrors.ErrInvalidReference.Message, err)
	default:
		return apperrors.Wrap(apperrors.CodeDatabase, fmt.Sprintf("Database error: %s", pgErr.Code), err)
	}
}
