package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domrepo "TradeCast/internal/domain/repository"
	"TradeCast/pkg/cache"
)

// CacheVersionStore keeps one counter per session. Backed by Redis the
// counters are shared by every replica; backed by a MemoryCache they are
// process-local.
type CacheVersionStore struct {
	c   cache.Counter
	ttl time.Duration
}

// NewCacheVersionStore drops a session's counter after ttl without a new
// request.
func NewCacheVersionStore(c cache.Counter, ttl time.Duration) *CacheVersionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CacheVersionStore{c: c, ttl: ttl}
}

func versionKey(session string) string {
	return cache.Key("version", session)
}

func (s *CacheVersionStore) Next(ctx context.Context, session string) (int64, error) {
	if session == "" {
		return 0, fmt.Errorf("session is required")
	}
	v, err := s.c.Bump(ctx, versionKey(session), s.ttl)
	if err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}
	return v, nil
}

// Latest returns 0 for a session that never asked for a token.
func (s *CacheVersionStore) Latest(ctx context.Context, session string) (int64, error) {
	var v int64
	err := s.c.Get(ctx, versionKey(session), &v)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("latest version: %w", err)
	}
	return v, nil
}

var _ domrepo.VersionStore = (*CacheVersionStore)(nil)
