package task

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/cache"
	"github.com/nkiryanov/todoapi/internal/logger"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/repository"
	"github.com/nkiryanov/todoapi/internal/repository/postgres"
	"github.com/nkiryanov/todoapi/internal/testutil"
)

func Test_TaskService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type env struct {
		s       *TaskService
		storage repository.Storage
		redis   testutil.RedisServer
		owner   models.User
		other   models.User
	}

	withEnv := func(t *testing.T, fn func(e env)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			rs := testutil.StartRedis(t)

			createUser := func(email string) models.User {
				u, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{Email: email, HashedPassword: "hash"})
				require.NoError(t, err)
				return u
			}

			fn(env{
				s:       NewService(storage, cache.NewRedis(rs.Client), time.Hour, logger.NewNoOpLogger()),
				storage: storage,
				redis:   rs,
				owner:   createUser("a@x.com"),
				other:   createUser("b@x.com"),
			})
		})
	}

	// List tasks once so the next list is served from cache
	warmCache := func(t *testing.T, e env) []models.Task {
		tasks, err := e.s.ListTasks(t.Context(), e.owner.ID)
		require.NoError(t, err)
		require.True(t, e.redis.Server.Exists(ListKey(e.owner.ID)), "list has to be cached")
		return tasks
	}

	boolPtr := func(b bool) *bool { return &b }

	t.Run("list key", func(t *testing.T) {
		id := uuid.MustParse("0b3ad1b4-2a5e-4c77-bd0e-5c2a1f0a9d11")
		require.Equal(t, "user:0b3ad1b4-2a5e-4c77-bd0e-5c2a1f0a9d11:tasks", ListKey(id))
	})

	t.Run("list miss stores tasks with ttl", func(t *testing.T) {
		withEnv(t, func(e env) {
			created, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "first"})
			require.NoError(t, err)

			tasks, err := e.s.ListTasks(t.Context(), e.owner.ID)

			require.NoError(t, err)
			require.Len(t, tasks, 1)
			require.Equal(t, created.ID, tasks[0].ID)

			raw, err := e.redis.Server.Get(ListKey(e.owner.ID))
			require.NoError(t, err)
			var cached []models.Task
			require.NoError(t, json.Unmarshal([]byte(raw), &cached))
			require.Len(t, cached, 1)
			require.Equal(t, created.ID, cached[0].ID)
			require.Equal(t, time.Hour, e.redis.Server.TTL(ListKey(e.owner.ID)))
		})
	})

	t.Run("list hit does not touch database", func(t *testing.T) {
		withEnv(t, func(e env) {
			warmCache(t, e)

			// Bypass the service, so cache is not invalidated
			_, err := e.storage.Task().CreateTask(t.Context(), e.owner.ID, repository.CreateTaskParams{Title: "hidden"})
			require.NoError(t, err)

			tasks, err := e.s.ListTasks(t.Context(), e.owner.ID)

			require.NoError(t, err)
			require.Empty(t, tasks, "cached empty list has to be returned")
		})
	})

	t.Run("list hit keeps order", func(t *testing.T) {
		withEnv(t, func(e env) {
			first, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "first"})
			require.NoError(t, err)
			second, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "second"})
			require.NoError(t, err)

			fromDB := warmCache(t, e)
			fromCache, err := e.s.ListTasks(t.Context(), e.owner.ID)
			require.NoError(t, err)

			require.Equal(t, []uuid.UUID{second.ID, first.ID}, []uuid.UUID{fromDB[0].ID, fromDB[1].ID}, "newest first")
			require.Len(t, fromCache, 2)
			require.Equal(t, fromDB[0].ID, fromCache[0].ID)
			require.Equal(t, fromDB[1].ID, fromCache[1].ID)
			require.True(t, fromDB[0].CreatedAt.Equal(fromCache[0].CreatedAt))
		})
	})

	t.Run("create invalidates cache", func(t *testing.T) {
		withEnv(t, func(e env) {
			warmCache(t, e)

			created, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "new"})
			require.NoError(t, err)

			require.False(t, e.redis.Server.Exists(ListKey(e.owner.ID)), "cache has to be dropped")
			tasks, err := e.s.ListTasks(t.Context(), e.owner.ID)
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			require.Equal(t, created.ID, tasks[0].ID)
		})
	})

	t.Run("update invalidates cache", func(t *testing.T) {
		withEnv(t, func(e env) {
			created, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "task"})
			require.NoError(t, err)
			warmCache(t, e)

			updated, err := e.s.UpdateTask(t.Context(), e.owner.ID, created.ID, UpdateParams{Completed: boolPtr(true)})
			require.NoError(t, err)
			require.True(t, updated.Completed)

			require.False(t, e.redis.Server.Exists(ListKey(e.owner.ID)), "cache has to be dropped")
			tasks, err := e.s.ListTasks(t.Context(), e.owner.ID)
			require.NoError(t, err)
			require.True(t, tasks[0].Completed)
		})
	})

	t.Run("delete invalidates cache", func(t *testing.T) {
		withEnv(t, func(e env) {
			created, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "task"})
			require.NoError(t, err)
			warmCache(t, e)

			err = e.s.DeleteTask(t.Context(), e.owner.ID, created.ID)
			require.NoError(t, err)

			require.False(t, e.redis.Server.Exists(ListKey(e.owner.ID)), "cache has to be dropped")
			tasks, err := e.s.ListTasks(t.Context(), e.owner.ID)
			require.NoError(t, err)
			require.Empty(t, tasks)
		})
	})

	t.Run("ownership isolation", func(t *testing.T) {
		withEnv(t, func(e env) {
			created, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "mine"})
			require.NoError(t, err)
			warmCache(t, e)

			_, err = e.s.GetTask(t.Context(), e.other.ID, created.ID)
			require.ErrorIs(t, err, apperrors.ErrNotFound)

			_, err = e.s.UpdateTask(t.Context(), e.other.ID, created.ID, UpdateParams{Completed: boolPtr(true)})
			require.ErrorIs(t, err, apperrors.ErrNotFound)

			err = e.s.DeleteTask(t.Context(), e.other.ID, created.ID)
			require.ErrorIs(t, err, apperrors.ErrNotFound)

			got, err := e.s.GetTask(t.Context(), e.owner.ID, created.ID)
			require.NoError(t, err)
			require.False(t, got.Completed, "task must be untouched")
			require.True(t, e.redis.Server.Exists(ListKey(e.owner.ID)), "failed writes do not touch owner cache")

			others, err := e.s.ListTasks(t.Context(), e.other.ID)
			require.NoError(t, err)
			require.Empty(t, others)
		})
	})

	t.Run("not existed task", func(t *testing.T) {
		withEnv(t, func(e env) {
			_, err := e.s.GetTask(t.Context(), e.owner.ID, uuid.New())
			require.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	})

	t.Run("list degrades to database when cache is down", func(t *testing.T) {
		withEnv(t, func(e env) {
			created, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "task"})
			require.NoError(t, err)
			e.redis.Server.Close()

			tasks, err := e.s.ListTasks(t.Context(), e.owner.ID)

			require.NoError(t, err, "cache failure must not fail the read")
			require.Len(t, tasks, 1)
			require.Equal(t, created.ID, tasks[0].ID)
		})
	})

	t.Run("list ignores corrupted cache", func(t *testing.T) {
		withEnv(t, func(e env) {
			_, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "task"})
			require.NoError(t, err)
			require.NoError(t, e.redis.Server.Set(ListKey(e.owner.ID), "not json"))

			tasks, err := e.s.ListTasks(t.Context(), e.owner.ID)

			require.NoError(t, err)
			require.Len(t, tasks, 1)
		})
	})

	t.Run("write fails when cache is down", func(t *testing.T) {
		withEnv(t, func(e env) {
			e.redis.Server.Close()

			_, err := e.s.CreateTask(t.Context(), e.owner.ID, CreateParams{Title: "task"})

			require.Error(t, err, "cache invalidation failure has to be reported")
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			require.True(t, strings.HasPrefix(appErr.Code, "CACHE_"), "got code %s", appErr.Code)
		})
	})
}
