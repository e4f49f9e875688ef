package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/handlers/render"
	"github.com/nkiryanov/todoapi/internal/handlers/userctx"
	"github.com/nkiryanov/todoapi/internal/logger"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/service/task"
)

type taskResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newTaskResponse(t models.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Get authenticated user or write internal error
// User is always there when handler is behind AuthMiddleware
func currentUser(w http.ResponseWriter, r *http.Request, l logger.Logger) (models.User, bool) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, l, errors.New("user not found in request context"))
	}
	return user, ok
}

// Parse task id from path; malformed id can't match any task
func taskID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, apperrors.ErrNotFound
	}
	return id, nil
}

func handleCreateTask(ts taskService, l logger.Logger) http.Handler {
	type request struct {
		Title       string `json:"title" validate:"required,max=255"`
		Description string `json:"description" validate:"max=2000"`
		Completed   bool   `json:"completed"`
	}
	type response struct {
		Todo taskResponse `json:"todo"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, l)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		created, err := ts.CreateTask(r.Context(), user.ID, task.CreateParams{
			Title:       data.Title,
			Description: data.Description,
			Completed:   data.Completed,
		})
		if err != nil {
			render.Error(w, l, err)
			return
		}

		render.Success(w, http.StatusCreated, "Todo created successfully", response{Todo: newTaskResponse(created)})
	})
}

func handleListTasks(ts taskService, l logger.Logger) http.Handler {
	type response struct {
		Todos []taskResponse `json:"todos"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, l)
		if !ok {
			return
		}

		tasks, err := ts.ListTasks(r.Context(), user.ID)
		if err != nil {
			render.Error(w, l, err)
			return
		}

		res := response{Todos: make([]taskResponse, 0, len(tasks))}
		for _, t := range tasks {
			res.Todos = append(res.Todos, newTaskResponse(t))
		}

		render.Success(w, http.StatusOK, "Todos fetched successfully", res)
	})
}

func handleGetTask(ts taskService, l logger.Logger) http.Handler {
	type response struct {
		Todo taskResponse `json:"todo"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, l)
		if !ok {
			return
		}

		id, err := taskID(r)
		if err != nil {
			render.Error(w, l, err)
			return
		}

		t, err := ts.GetTask(r.Context(), user.ID, id)
		if err != nil {
			render.Error(w, l, err)
			return
		}

		render.Success(w, http.StatusOK, "Todo fetched successfully", response{Todo: newTaskResponse(t)})
	})
}

func handleUpdateTask(ts taskService, l logger.Logger) http.Handler {
	// Absent fields are kept as is
	type request struct {
		Title       *string `json:"title" validate:"omitnil,min=1,max=255"`
		Description *string `json:"description" validate:"omitnil,max=2000"`
		Completed   *bool   `json:"completed"`
	}
	type response struct {
		Todo taskResponse `json:"todo"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, l)
		if !ok {
			return
		}

		id, err := taskID(r)
		if err != nil {
			render.Error(w, l, err)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		updated, err := ts.UpdateTask(r.Context(), user.ID, id, task.UpdateParams{
			Title:       data.Title,
			Description: data.Description,
			Completed:   data.Completed,
		})
		if err != nil {
			render.Error(w, l, err)
			return
		}

		render.Success(w, http.StatusOK, "Todo updated successfully", response{Todo: newTaskResponse(updated)})
	})
}

func handleDeleteTask(ts taskService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, l)
		if !ok {
			return
		}

		id, err := taskID(r)
		if err != nil {
			render.Error(w, l, err)
			return
		}

		if err := ts.DeleteTask(r.Context(), user.ID, id); err != nil {
			render.Error(w, l, err)
			return
		}

		render.Success(w, http.StatusOK, "Todo deleted successfully", nil)
	})
}
