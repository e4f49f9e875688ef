package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkiryanov/todoapi/internal/handlers/middleware"
	"github.com/nkiryanov/todoapi/internal/logger"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/service/auth"
	"github.com/nkiryanov/todoapi/internal/service/task"
)

const apiPrefix = "/api/v1"

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterDeps struct {
	Auth  authService
	Tasks taskService

	// Health check targets
	DB    pinger
	Cache pinger

	Logger logger.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	as, ts, l := deps.Auth, deps.Tasks, deps.Logger

	authMiddleware := middleware.AuthMiddleware(as, l)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST "+apiPrefix+"/auth/register", handleRegister(as, l))
	mux.Handle("POST "+apiPrefix+"/auth/login", handleLogin(as, l))
	mux.Handle("POST "+apiPrefix+"/auth/refresh", handleTokenRefresh(as, l))
	mux.Handle("POST "+apiPrefix+"/auth/logout", handleLogout(as, l))
	mux.Handle("GET "+apiPrefix+"/auth/me", withAuth(handleUserMe(l)))

	mux.Handle("POST "+apiPrefix+"/todos", withAuth(handleCreateTask(ts, l)))
	mux.Handle("GET "+apiPrefix+"/todos", withAuth(handleListTasks(ts, l)))
	mux.Handle("GET "+apiPrefix+"/todos/{id}", withAuth(handleGetTask(ts, l)))
	mux.Handle("PATCH "+apiPrefix+"/todos/{id}", withAuth(handleUpdateTask(ts, l)))
	mux.Handle("DELETE "+apiPrefix+"/todos/{id}", withAuth(handleDeleteTask(ts, l)))

	mux.Handle("GET /health", handleHealth(deps.DB, deps.Cache, l))
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := chain(mux,
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(l),
		middleware.MetricsMiddleware(),
	)

	return handler
}

type authService interface {
	// Register user; has to return apperrors.ErrDuplicateEmail if email is taken
	Register(ctx context.Context, params auth.RegisterParams) (models.User, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials whatever is wrong
	Login(ctx context.Context, email string, password string) (auth.LoginResult, error)

	// Issue new access token; apperrors.ErrInvalidOrExpiredToken if refresh token is not valid
	Refresh(ctx context.Context, refresh string) (models.IssuedToken, error)

	// Revoke refresh token; no error if token is unknown
	Logout(ctx context.Context, refresh string) error

	// Refresh token transport
	SetRefreshCookie(w http.ResponseWriter, token models.IssuedToken)
	ClearRefreshCookie(w http.ResponseWriter)
	ReadRefreshToken(r *http.Request) (string, error)

	// Get request and return user if it authenticated or error
	AuthenticateRequest(r *http.Request) (models.User, error)
}

type taskService interface {
	CreateTask(ctx context.Context, userID uuid.UUID, params task.CreateParams) (models.Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
	GetTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error)
	UpdateTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, params task.UpdateParams) (models.Task, error)
	DeleteTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error
}
