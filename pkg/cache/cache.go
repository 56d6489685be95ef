package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is a read-through value cache. Values are JSON encoded except
// strings and byte slices, which are stored raw.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Counter is a Service that can also bump integer keys atomically. Only
// single-layer caches implement it: a layered cache could answer Get from a
// stale L1 copy.
type Counter interface {
	Service
	// Bump increments key, starting from zero, and pushes its expiry to ttl
	// from now. Both happen or neither does.
	Bump(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Remember returns the cached value under key, or calls load and caches its
// result for ttl. Cache read/write failures fall through to load.
func Remember[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if err := c.Get(ctx, key, &v); err == nil {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

var (
	_ Counter = (*RedisCache)(nil)
	_ Counter = (*MemoryCache)(nil)
	_ Service = (*LayeredCache)(nil)
)
