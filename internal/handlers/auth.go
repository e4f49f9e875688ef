package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/handlers/render"
	"github.com/nkiryanov/todoapi/internal/logger"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/service/auth"
)

// Public user representation
type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func handleRegister(as authService, l logger.Logger) http.Handler {
	type request struct {
		Email     string `json:"email" validate:"required,email,max=255"`
		Password  string `json:"password" validate:"required,min=8,max=128"`
		FirstName string `json:"firstName" validate:"max=100"`
		LastName  string `json:"lastName" validate:"max=100"`
	}
	type response struct {
		User userResponse `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := as.Register(r.Context(), auth.RegisterParams{
			Email:     data.Email,
			Password:  data.Password,
			FirstName: data.FirstName,
			LastName:  data.LastName,
		})
		if err != nil {
			render.Error(w, l, err)
			return
		}

		render.Success(w, http.StatusCreated, "User registered successfully", response{User: newUserResponse(user)})
	})
}

func handleLogin(as authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		User        userResponse `json:"user"`
		AccessToken string       `json:"accessToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := as.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			render.Error(w, l, err)
			return
		}

		as.SetRefreshCookie(w, res.Refresh)
		render.Success(w, http.StatusOK, "Login successful", response{
			User:        newUserResponse(res.User),
			AccessToken: res.Access.Value,
		})
	})
}

func handleTokenRefresh(as authService, l logger.Logger) http.Handler {
	type response struct {
		AccessToken string `json:"accessToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := as.ReadRefreshToken(r)
		if err != nil {
			render.Error(w, l, err)
			return
		}

		access, err := as.Refresh(r.Context(), refresh)
		if err != nil {
			render.Error(w, l, err)
			return
		}

		render.Success(w, http.StatusOK, "Token refreshed successfully", response{AccessToken: access.Value})
	})
}

func handleLogout(as authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := as.ReadRefreshToken(r)
		switch {
		case errors.Is(err, apperrors.ErrUnauthenticated):
			// Nothing to revoke, but cookie is cleared anyway
		case err != nil:
			render.Error(w, l, err)
			return
		default:
			if err := as.Logout(r.Context(), refresh); err != nil {
				render.Error(w, l, err)
				return
			}
		}

		as.ClearRefreshCookie(w)
		render.Success(w, http.StatusOK, "Logout successful", nil)
	})
}

func handleUserMe(l logger.Logger) http.Handler {
	type response struct {
		User userResponse `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, l)
		if !ok {
			return
		}

		render.Success(w, http.StatusOK, "User fetched successfully", response{User: newUserResponse(user)})
	})
}
