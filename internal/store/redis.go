package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and invalidate the cache; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		return data, nil
	}
	// Redis being down degrades to primary reads.

	data, err = s.primary.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.rdb.Set(ctx, cacheKey(key), data, s.ttl)
	return data, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.primary.Set(ctx, key, value); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *CachedStore) Remove(ctx context.Context, key string) error {
	if err := s.primary.Remove(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *CachedStore) Commit(ctx context.Context, b *Batch) error {
	if err := s.primary.Commit(ctx, b); err != nil {
		return err
	}
	s.invalidate(ctx, b.Keys()...)
	return nil
}

// Ping reports whether the cache is reachable.
func (s *CachedStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	ck := make([]string, len(keys))
	for i, k := range keys {
		ck[i] = cacheKey(k)
	}
	// Next read will re-populate.
	s.rdb.Del(ctx, ck...)
}

func cacheKey(key string) string { return fmt.Sprintf("ledger:%s", key) }
