package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/models"
	"github.com/nkiryanov/todoapi/internal/repository"
	"github.com/nkiryanov/todoapi/internal/repository/postgres"
	"github.com/nkiryanov/todoapi/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/todoapi/internal/testutil"
)

const testSecret = "test-secret-key"

func newTokenManager(t *testing.T, secret string) *tokenmanager.TokenManager {
	m, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  secret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err, "token manager should be created without errors")
	return m
}

func Test_Auth(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Begin new db transaction and create new AuthService
	// Rollback transaction when test stops
	withTx := func(dbpool *pgxpool.Pool, t *testing.T, fn func(s *AuthService, storage repository.Storage)) {
		testutil.InTx(dbpool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			s, err := NewService(Config{Hasher: BcryptHasher{Cost: bcrypt.MinCost}}, newTokenManager(t, testSecret), storage)
			require.NoError(t, err, "auth service could't be started", err)

			fn(s, storage)
		})
	}

	register := func(t *testing.T, s *AuthService) models.User {
		user, err := s.Register(t.Context(), RegisterParams{
			Email:     "a@x.com",
			Password:  "pw123456",
			FirstName: "Ann",
			LastName:  "Smith",
		})
		require.NoError(t, err)
		return user
	}

	t.Run("new auth service defaults", func(t *testing.T) {
		s, err := NewService(Config{}, nil, nil)
		require.NoError(t, err, "auth service should be created without errors")

		require.Equal(t, defaultAccessHeaderName, s.accessHeaderName, "default access header name should be set")
		require.Equal(t, defaultAccessAuthScheme, s.accessAuthScheme, "default access auth")
		require.Equal(t, defaultAccessCookieName, s.accessCookieName, "default access cookie name should be set")
		require.Equal(t, defaultRefreshCookieName, s.refreshCookieName, "default refresh cookie name should be set")
		require.Equal(t, BcryptHasher{}, s.hasher, "default hasher should be set to BcryptHasher")
		require.False(t, s.secureCookies)
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("new user ok", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, storage repository.Storage) {
				user := register(t, s)

				require.NotEqual(t, uuid.Nil, user.ID)
				require.Equal(t, "a@x.com", user.Email)
				require.Equal(t, "Ann", user.FirstName)
				require.Equal(t, "Smith", user.LastName)
				require.True(t, user.IsActive)
				require.Empty(t, user.HashedPassword, "password hash must not leave the service")

				stored, err := storage.User().GetUserByID(t.Context(), user.ID)
				require.NoError(t, err)
				require.NotEqual(t, "pw123456", stored.HashedPassword, "plain password must never be stored")
				require.NoError(t, BcryptHasher{}.Compare(stored.HashedPassword, "pw123456"))
			})
		})

		t.Run("fail if user exists", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				register(t, s)

				_, err := s.Register(t.Context(), RegisterParams{Email: "a@x.com", Password: "other-pwd"})

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("existing user ok", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, storage repository.Storage) {
				registered := register(t, s)

				res, err := s.Login(t.Context(), "a@x.com", "pw123456")

				require.NoError(t, err)
				require.Equal(t, registered, res.User)
				require.Empty(t, res.User.HashedPassword, "password hash must not leave the service")
				require.NotEmpty(t, res.Access.Value, "access token should not be empty")
				require.NotEmpty(t, res.Refresh.Value, "refresh token should not be empty")
				require.WithinDuration(t, time.Now().Add(24*time.Hour), res.Refresh.ExpiresAt, time.Second)

				stored, err := storage.Refresh().Get(t.Context(), res.Refresh.Value)
				require.NoError(t, err, "refresh token has to be persisted")
				require.Equal(t, registered.ID, stored.UserID)
				require.WithinDuration(t, res.Refresh.ExpiresAt, stored.ExpiresAt, time.Millisecond)
				require.Nil(t, stored.RevokedAt)
			})
		})

		tests := []struct {
			name     string
			email    string
			password string
		}{
			{
				name:     "login fail if wrong password",
				email:    "a@x.com",
				password: "wrong-password",
			},
			{
				name:     "login fail if user not exists",
				email:    "not-existed@x.com",
				password: "pw123456",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
					register(t, s)

					_, err := s.Login(t.Context(), tt.email, tt.password)

					require.Error(t, err)
					require.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "same error whatever is wrong")
				})
			})
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("refresh many times without rotation", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, storage repository.Storage) {
				user := register(t, s)
				login, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)

				for range 3 {
					access, err := s.Refresh(t.Context(), login.Refresh.Value)
					require.NoError(t, err, "refresh token stays valid after use")
					require.NotEmpty(t, access.Value)

					got, err := s.Authenticate(t.Context(), access.Value)
					require.NoError(t, err)
					require.Equal(t, user.ID, got.ID, "new access token bound to token owner")
				}

				stored, err := storage.Refresh().Get(t.Context(), login.Refresh.Value)
				require.NoError(t, err)
				require.True(t, stored.Valid(time.Now()), "refresh record is untouched by refresh")
			})
		})

		t.Run("fail after logout", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				register(t, s)
				login, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)

				err = s.Logout(t.Context(), login.Refresh.Value)
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), login.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
			})
		})

		t.Run("fail if expired", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, storage repository.Storage) {
				user := register(t, s)
				now := time.Now()
				_, err := storage.Refresh().Save(t.Context(), models.RefreshToken{
					ID:        uuid.New(),
					UserID:    user.ID,
					Token:     "expired-token",
					CreatedAt: now.Add(-2 * time.Hour),
					ExpiresAt: now.Add(-time.Hour),
				})
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), "expired-token")
				require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
			})
		})

		t.Run("fail when expiry moment comes", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				register(t, s)
				login, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)

				s.now = func() time.Time { return login.Refresh.ExpiresAt }

				_, err = s.Refresh(t.Context(), login.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken, "token is valid strictly before expiry")
			})
		})

		t.Run("fail if not exists", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				_, err := s.Refresh(t.Context(), "not-existed")
				require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
			})
		})

		t.Run("access token is not a refresh token", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				register(t, s)
				login, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), login.Access.Value)
				require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)

				_, err = s.Authenticate(t.Context(), login.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrInvalidToken)
			})
		})
	})

	t.Run("Logout", func(t *testing.T) {
		t.Run("idempotent", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				register(t, s)
				login, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)

				require.NoError(t, s.Logout(t.Context(), login.Refresh.Value))
				require.NoError(t, s.Logout(t.Context(), login.Refresh.Value), "second logout is noop")
				require.NoError(t, s.Logout(t.Context(), "not-existed"), "unknown token is noop")
				require.NoError(t, s.Logout(t.Context(), ""), "empty token is noop")
			})
		})

		t.Run("other sessions stay valid", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				register(t, s)
				first, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)
				second, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)

				require.NoError(t, s.Logout(t.Context(), first.Refresh.Value))

				_, err = s.Refresh(t.Context(), second.Refresh.Value)
				require.NoError(t, err)
			})
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("valid token", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				registered := register(t, s)
				login, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)

				user, err := s.Authenticate(t.Context(), login.Access.Value)

				require.NoError(t, err)
				require.Equal(t, registered, user)
				require.Empty(t, user.HashedPassword)
			})
		})

		t.Run("signed with other secret", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				user := register(t, s)
				access, err := newTokenManager(t, "other-secret").IssueAccess(user.ID)
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), access.Value)

				require.ErrorIs(t, err, apperrors.ErrInvalidToken)
			})
		})

		t.Run("expired token", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				user := register(t, s)
				past := time.Now().Add(-time.Hour)
				access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenmanager.AccessTokenClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						IssuedAt:  jwt.NewNumericDate(past),
						ExpiresAt: jwt.NewNumericDate(past.Add(15 * time.Minute)),
					},
					UserID: user.ID,
				}).SignedString([]byte(testSecret))
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), access)

				require.ErrorIs(t, err, apperrors.ErrTokenExpired)
			})
		})

		t.Run("deactivated user", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, storage repository.Storage) {
				user := register(t, s)
				login, err := s.Login(t.Context(), "a@x.com", "pw123456")
				require.NoError(t, err)
				require.NoError(t, storage.User().SetUserActive(t.Context(), user.ID, false))

				_, err = s.Authenticate(t.Context(), login.Access.Value)

				require.ErrorIs(t, err, apperrors.ErrUserDeactivated)
			})
		})

		t.Run("user not exists", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, _ repository.Storage) {
				access, err := newTokenManager(t, testSecret).IssueAccess(uuid.New())
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), access.Value)

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})
	})
}

func TestAuthService_Request(t *testing.T) {
	s, err := NewService(Config{}, nil, nil)
	require.NoError(t, err)

	t.Run("ReadAccessToken", func(t *testing.T) {
		tests := []struct {
			name    string
			prepare func(r *http.Request)
			want    string
			wantErr error
		}{
			{
				name:    "bearer header",
				prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer header-token") },
				want:    "header-token",
			},
			{
				name:    "scheme is case insensitive",
				prepare: func(r *http.Request) { r.Header.Set("Authorization", "bearer header-token") },
				want:    "header-token",
			},
			{
				name:    "cookie fallback",
				prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "accessToken", Value: "cookie-token"}) },
				want:    "cookie-token",
			},
			{
				name: "header wins over cookie",
				prepare: func(r *http.Request) {
					r.Header.Set("Authorization", "Bearer header-token")
					r.AddCookie(&http.Cookie{Name: "accessToken", Value: "cookie-token"})
				},
				want: "header-token",
			},
			{
				name:    "other scheme",
				prepare: func(r *http.Request) { r.Header.Set("Authorization", "Basic dXNlcjpwd2Q=") },
				wantErr: apperrors.ErrUnauthenticated,
			},
			{
				name:    "empty bearer",
				prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") },
				wantErr: apperrors.ErrUnauthenticated,
			},
			{
				name:    "nothing",
				prepare: func(r *http.Request) {},
				wantErr: apperrors.ErrUnauthenticated,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				tt.prepare(r)

				got, err := s.ReadAccessToken(r)

				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
					return
				}
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("refresh cookie round trip", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.SetRefreshCookie(w, models.IssuedToken{Value: "refresh-value", ExpiresAt: time.Now().Add(time.Hour)})

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, "refreshToken", c.Name)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.InDelta(t, time.Hour.Seconds(), c.MaxAge, 2)

		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.AddCookie(c)
		got, err := s.ReadRefreshToken(r)
		require.NoError(t, err)
		require.Equal(t, "refresh-value", got)
	})

	t.Run("clear refresh cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.ClearRefreshCookie(w)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, "refreshToken", cookies[0].Name)
		require.Empty(t, cookies[0].Value)
		require.Negative(t, cookies[0].MaxAge)
	})

	t.Run("no refresh cookie", func(t *testing.T) {
		_, err := s.ReadRefreshToken(httptest.NewRequest(http.MethodPost, "/", nil))
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("secure cookies", func(t *testing.T) {
		secure, err := NewService(Config{SecureCookies: true}, nil, nil)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		secure.SetRefreshCookie(w, models.IssuedToken{Value: "v", ExpiresAt: time.Now().Add(time.Hour)})

		require.True(t, w.Result().Cookies()[0].Secure)
	})
}
