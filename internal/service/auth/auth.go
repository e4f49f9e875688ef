package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/metrics"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/repository"
	"github.com/nkiryanov/todoapi/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Auth service config; zero values are replaced with defaults
type Config struct {
	// Hasher to use during user registration or login process
	Hasher PasswordHasher

	// Where to look for access token: header with scheme or cookie
	AccessHeaderName string
	AccessAuthScheme string
	AccessCookieName string

	// Cookie to keep refresh token in
	RefreshCookieName string

	// Set 'Secure' flag on cookies, has to be true in production
	SecureCookies bool
}

type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type LoginResult struct {
	User    models.User
	Access  models.IssuedToken
	Refresh models.IssuedToken
}

// Auth service
type AuthService struct {
	// Manager to issue and verify tokens
	tokens *tokenmanager.TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Repository to access long term data
	storage repository.Storage

	accessHeaderName  string
	accessAuthScheme  string
	accessCookieName  string
	refreshCookieName string
	secureCookies     bool

	now func() time.Time
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, storage repository.Storage) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)

	// Set default bcrypt hasher if not provided by user
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	return &AuthService{
		tokens:            tokens,
		hasher:            hasher,
		storage:           storage,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		secureCookies:     cfg.SecureCookies,
		now:               time.Now,
	}, nil
}

// Register new user
// Returns apperrors.ErrDuplicateEmail if email already taken
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (models.User, error) {
	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Email:          params.Email,
		HashedPassword: hash,
		FirstName:      params.FirstName,
		LastName:       params.LastName,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user.Public(), nil
}

// Login user with email and password
// Unknown email and wrong password both end with apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, email string, password string) (LoginResult, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrRecordNotFound):
		return LoginResult{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return LoginResult{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return LoginResult{}, apperrors.ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	refresh, err := s.tokens.IssueRefresh()
	if err != nil {
		return LoginResult{}, err
	}

	_, err = s.storage.Refresh().Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     refresh.Value,
		CreatedAt: s.now(),
		ExpiresAt: refresh.ExpiresAt,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	metrics.AccessTokensIssued.Inc()
	metrics.RefreshTokensIssued.Inc()

	return LoginResult{User: user.Public(), Access: access, Refresh: refresh}, nil
}

// Exchange refresh token for new access token
// Refresh token itself is not rotated and stays valid until it expires or revoked
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.IssuedToken, error) {
	token, err := s.storage.Refresh().Get(ctx, refresh)
	switch {
	case errors.Is(err, apperrors.ErrRecordNotFound):
		metrics.RefreshTokensRejected.Inc()
		return models.IssuedToken{}, apperrors.ErrInvalidOrExpiredToken
	case err != nil:
		return models.IssuedToken{}, fmt.Errorf("can't get refresh token. Err: %w", err)
	}

	if !token.Valid(s.now()) {
		metrics.RefreshTokensRejected.Inc()
		return models.IssuedToken{}, apperrors.ErrInvalidOrExpiredToken
	}

	access, err := s.tokens.IssueAccess(token.UserID)
	if err != nil {
		return models.IssuedToken{}, err
	}

	metrics.RefreshTokensUsed.Inc()
	metrics.AccessTokensIssued.Inc()

	return access, nil
}

// Revoke refresh token
// Idempotent: unknown or already revoked token is not an error
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	if refresh == "" {
		return nil
	}

	revoked, err := s.storage.Refresh().Revoke(ctx, refresh, s.now())
	if err != nil {
		return fmt.Errorf("can't revoke refresh token. Err: %w", err)
	}

	metrics.RefreshTokensRevoked.Add(float64(revoked))
	return nil
}
