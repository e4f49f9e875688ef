package cache

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/todoapi/internal/apperrors"
	"github.com/nkiryanov/todoapi/internal/testutil"
)

func Test_Redis(t *testing.T) {
	t.Parallel()

	t.Run("get miss", func(t *testing.T) {
		rs := testutil.StartRedis(t)
		c := NewRedis(rs.Client)

		_, err := c.Get(t.Context(), "absent")

		require.ErrorIs(t, err, ErrMiss)
	})

	t.Run("set and get", func(t *testing.T) {
		rs := testutil.StartRedis(t)
		c := NewRedis(rs.Client)

		err := c.Set(t.Context(), "user:1:tasks", []byte(`[{"id":"1"}]`), time.Hour)
		require.NoError(t, err)

		got, err := c.Get(t.Context(), "user:1:tasks")
		require.NoError(t, err)
		require.JSONEq(t, `[{"id":"1"}]`, string(got))
		require.Equal(t, time.Hour, rs.Server.TTL("user:1:tasks"), "ttl has to be set")
	})

	t.Run("value expires", func(t *testing.T) {
		rs := testutil.StartRedis(t)
		c := NewRedis(rs.Client)
		require.NoError(t, c.Set(t.Context(), "key", []byte("value"), time.Minute))

		rs.Server.FastForward(time.Minute + time.Second)

		_, err := c.Get(t.Context(), "key")
		require.ErrorIs(t, err, ErrMiss)
	})

	t.Run("delete", func(t *testing.T) {
		rs := testutil.StartRedis(t)
		c := NewRedis(rs.Client)
		require.NoError(t, c.Set(t.Context(), "key", []byte("value"), time.Minute))

		require.NoError(t, c.Delete(t.Context(), "key"))
		require.False(t, rs.Server.Exists("key"))

		require.NoError(t, c.Delete(t.Context(), "key"), "deleting absent key is ok")
		require.NoError(t, c.Delete(t.Context()), "deleting nothing is ok")
	})

	t.Run("server unavailable", func(t *testing.T) {
		rs := testutil.StartRedis(t)
		c := NewRedis(rs.Client)
		rs.Server.Close()

		_, err := c.Get(t.Context(), "key")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrMiss, "unavailable cache is not a miss")
		appErr, ok := apperrors.As(err)
		require.True(t, ok, "redis error has to be operational")
		require.Contains(t, []string{apperrors.CodeCacheConnectionRefused, apperrors.CodeCacheConnectionClosed}, appErr.Code)

		err = c.Delete(t.Context(), "key")
		_, ok = apperrors.As(err)
		require.True(t, ok)
	})

	t.Run("client closed", func(t *testing.T) {
		rs := testutil.StartRedis(t)
		c := NewRedis(rs.Client)
		require.NoError(t, rs.Client.Close())

		err := c.Set(t.Context(), "key", []byte("value"), time.Minute)

		require.ErrorIs(t, err, apperrors.ErrCacheConnectionClosed)
	})

	t.Run("connect", func(t *testing.T) {
		rs := testutil.StartRedis(t)

		client, err := Connect(t.Context(), "redis://"+rs.Server.Addr()+"/0")
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		require.NoError(t, NewRedis(client).Ping(t.Context()))
	})

	t.Run("connect bad url", func(t *testing.T) {
		_, err := Connect(t.Context(), "http://localhost")
		require.Error(t, err)
	})
}

func Test_classify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *apperrors.Error
	}{
		{"refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), apperrors.ErrCacheConnectionRefused},
		{"client closed", redis.ErrClosed, apperrors.ErrCacheConnectionClosed},
		{"eof", io.EOF, apperrors.ErrCacheConnectionClosed},
		{"other", errors.New("WRONGTYPE"), apperrors.ErrCache},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)

			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, tt.err, "cause has to be kept")
		})
	}
}
