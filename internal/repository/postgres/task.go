package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/repository"
)

type TaskRepo struct {
	DB DBTX
}

const taskColumns = `id, user_id, title, description, completed, created_at, updated_at`

const createTask = `-- name: CreateTask
INSERT INTO tasks (id, user_id, title, description, completed, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
RETURNING ` + taskColumns

func (r *TaskRepo) CreateTask(ctx context.Context, userID uuid.UUID, params repository.CreateTaskParams) (models.Task, error) {
	now := time.Now()
	rows, _ := r.DB.Query(ctx, createTask, uuid.New(), userID, params.Title, params.Description, params.Completed, now)
	task, err := pgx.CollectOneRow(rows, rowToTask)
	if err != nil {
		return task, fmt.Errorf("create task: %w", dbError(err))
	}
	return task, nil
}

// Tie-break by id, so tasks created in the same microsecond have stable order
const listTasks = `-- name: ListTasks
SELECT ` + taskColumns + ` FROM tasks
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
`

func (r *TaskRepo) ListTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	rows, _ := r.DB.Query(ctx, listTasks, userID)
	tasks, err := pgx.CollectRows(rows, rowToTask)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", dbError(err))
	}
	return tasks, nil
}

const getTask = `-- name: GetTask
SELECT ` + taskColumns + ` FROM tasks
WHERE id = $1 AND user_id = $2
`

func (r *TaskRepo) GetTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, getTask, taskID, userID)
	return collectTask(rows)
}

const updateTask = `-- name: UpdateTask
UPDATE tasks SET
	title = COALESCE($3, title),
	description = COALESCE($4, description),
	completed = COALESCE($5, completed),
	updated_at = $6
WHERE id = $1 AND user_id = $2
RETURNING ` + taskColumns

func (r *TaskRepo) UpdateTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, params repository.UpdateTaskParams) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, updateTask, taskID, userID, params.Title, params.Description, params.Completed, time.Now())
	return collectTask(rows)
}

const deleteTask = `-- name: DeleteTask
DELETE FROM tasks
WHERE id = $1 AND user_id = $2
`

func (r *TaskRepo) DeleteTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteTask, taskID, userID)
	switch {
	case err != nil:
		return fmt.Errorf("delete task: %w", dbError(err))
	case tag.RowsAffected() == 0:
		return apperrors.ErrNotFound
	default:
		return nil
	}
}

func collectTask(rows pgx.Rows) (models.Task, error) {
	task, err := pgx.CollectOneRow(rows, rowToTask)

	switch {
	case err == nil:
		return task, nil
	case errors.Is(err, pgx.ErrNoRows):
		return task, apperrors.ErrNotFound
	default:
		return task, fmt.Errorf("get task: %w", dbError(err))
	}
}

func rowToTask(row pgx.CollectableRow) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
