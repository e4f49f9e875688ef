package cache

import (
	"context"
	"errors"
	"time"
)

// Value is absent in the cache
var ErrMiss = errors.New("cache miss")

// Key-value cache. Not authoritative: every value must be reconstructible from the database
type Cache interface {
	// Get value by key; ErrMiss if there is no such key
	Get(ctx context.Context, key string) ([]byte, error)

	// Set value with time to live
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete keys; deleting absent key is not an error
	Delete(ctx context.Context, keys ...string) error
}
