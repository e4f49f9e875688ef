package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/service/auth/tokenmanager"
)

// Get access token from request: 'Authorization: Bearer <token>' header first, cookie then
// Returns apperrors.ErrUnauthenticated if there is no token
func (s *AuthService) ReadAccessToken(r *http.Request) (string, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, token, ok := strings.Cut(header, " ")
	if ok && strings.EqualFold(scheme, s.accessAuthScheme) && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), nil
	}

	cookie, err := r.Cookie(s.accessCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	return "", apperrors.ErrUnauthenticated
}

// Verify access token and load its owner
// Returned user is safe to share: it has no password hash
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.User, error) {
	userID, err := s.tokens.ParseAccess(token)
	switch {
	case errors.Is(err, tokenmanager.ErrExpired):
		return models.User{}, apperrors.Wrap(apperrors.CodeTokenExpired, apperrors.ErrTokenExpired.Message, err)
	case err != nil:
		return models.User{}, apperrors.Wrap(apperrors.CodeInvalidToken, apperrors.ErrInvalidToken.Message, err)
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrRecordNotFound):
		return models.User{}, apperrors.ErrUserNotFound
	case err != nil:
		return models.User{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if !user.IsActive {
		return models.User{}, apperrors.ErrUserDeactivated
	}

	return user.Public(), nil
}

// Read token from request and authenticate its owner
func (s *AuthService) AuthenticateRequest(r *http.Request) (models.User, error) {
	token, err := s.ReadAccessToken(r)
	if err != nil {
		return models.User{}, err
	}

	return s.Authenticate(r.Context(), token)
}
