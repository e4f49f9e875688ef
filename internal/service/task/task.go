package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoapi/internal/cache"
	"github.com/nkiryanov/todoapi/internal/logger"
	"github.com/nkiryanov/todoapi/internal/metrics"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/repository"
)

const defaultCacheTTL = time.Hour

type CreateParams = repository.CreateTaskParams
type UpdateParams = repository.UpdateTaskParams

// Task service serves user tasks
// List is read through the cache; every write drops the owner's cached list after the database is changed
type TaskService struct {
	storage  repository.Storage
	cache    cache.Cache
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewService(storage repository.Storage, c cache.Cache, cacheTTL time.Duration, l logger.Logger) *TaskService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	return &TaskService{
		storage:  storage,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   l,
	}
}

// Cache key of user task list
func ListKey(userID uuid.UUID) string {
	return "user:" + userID.String() + ":tasks"
}

func (s *TaskService) CreateTask(ctx context.Context, userID uuid.UUID, params CreateParams) (models.Task, error) {
	task, err := s.storage.Task().CreateTask(ctx, userID, params)
	if err != nil {
		return task, err
	}

	if err := s.invalidate(ctx, userID); err != nil {
		return models.Task{}, err
	}

	return task, nil
}

// List user tasks, newest first
// Cache failures never fail the read: database is the source of truth
func (s *TaskService) ListTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	key := ListKey(userID)

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var tasks []models.Task
		if err := json.Unmarshal(cached, &tasks); err == nil {
			metrics.CacheRequests.WithLabelValues(metrics.CacheHit).Inc()
			return tasks, nil
		}
		metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
		s.logger.Warn("Cached task list is corrupted, reading from database", "key", key)
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheRequests.WithLabelValues(metrics.CacheMiss).Inc()
	default:
		metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
		s.logger.Warn("Cache read failed, reading from database", "key", key, "error", err)
	}

	tasks, err := s.storage.Task().ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		s.logger.Warn("Can't serialize task list for cache", "key", key, "error", err)
		return tasks, nil
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("Cache write failed", "key", key, "error", err)
	}

	return tasks, nil
}

// Get task by id; tasks of other users are not found
func (s *TaskService) GetTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error) {
	return s.storage.Task().GetTask(ctx, userID, taskID)
}

func (s *TaskService) UpdateTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, params UpdateParams) (models.Task, error) {
	if _, err := s.GetTask(ctx, userID, taskID); err != nil {
		return models.Task{}, err
	}

	task, err := s.storage.Task().UpdateTask(ctx, userID, taskID, params)
	if err != nil {
		return models.Task{}, err
	}

	if err := s.invalidate(ctx, userID); err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error {
	if _, err := s.GetTask(ctx, userID, taskID); err != nil {
		return err
	}

	if err := s.storage.Task().DeleteTask(ctx, userID, taskID); err != nil {
		return err
	}

	return s.invalidate(ctx, userID)
}

// Drop cached task list
// Stale list is worse than failed request, so the error is returned
func (s *TaskService) invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := s.cache.Delete(ctx, ListKey(userID)); err != nil {
		s.logger.Error("Cache invalidation failed", "key", ListKey(userID), "error", err)
		return fmt.Errorf("task list cache invalidation: %w", err)
	}
	return nil
}
