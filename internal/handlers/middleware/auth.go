package middleware

import (
	"net/http"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/handlers/render"
	"github.com/nkiryanov/todoapi/internal/handlers/userctx"
	"github.com/nkiryanov/todoapi/internal/logger"
	"github.com/nkiryanov/todoapi/internal/metrics"
	"github.com/nkiryanov/todoapi/internal/models"
)

type authService interface {
	// Read access token from request and return its owner
	AuthenticateRequest(r *http.Request) (models.User, error)
}

// Pass request only if it carries valid access token of active user
// The user is put to request context
func AuthMiddleware(as authService, l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.AuthenticateRequest(r)
			if err != nil {
				code := apperrors.CodeInternal
				if appErr, ok := apperrors.As(err); ok {
					code = appErr.Code
				}
				metrics.GuardRejections.WithLabelValues(code).Inc()

				render.Error(w, l, err)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
