// Package cache provides the query result cache (ristretto) and cross-instance
// invalidation over PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Config sizes the query cache.
type Config struct {
	// MaxCost is the total cost budget; entries cost 1 each by default
	MaxCost    int64
	DefaultTTL time.Duration
}

// DefaultConfig returns defaults for a single API instance.
func DefaultConfig() Config {
	return Config{
		MaxCost:    10_000,
		DefaultTTL: 5 * time.Minute,
	}
}

// QueryCache caches query responses by key.
type QueryCache struct {
	cache      *ristretto.Cache[string, any]
	defaultTTL time.Duration
}

// NewQueryCache creates the cache.
func NewQueryCache(cfg Config) (*QueryCache, error) {
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = DefaultConfig().MaxCost
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: cfg.MaxCost * 10,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &QueryCache{cache: c, defaultTTL: cfg.DefaultTTL}, nil
}

// Get returns a cached value.
func (c *QueryCache) Get(_ context.Context, key string) (any, bool) {
	return c.cache.Get(key)
}

// Set stores value for ttl (the default TTL when ttl <= 0). Writes are visible
// once ristretto's buffers are drained.
func (c *QueryCache) Set(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.cache.SetWithTTL(key, value, 1, ttl)
	c.cache.Wait()
}

// Delete removes keys.
func (c *QueryCache) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		c.cache.Del(k)
	}
}

// Invalidate implements mediator.Invalidator for a single instance.
func (c *QueryCache) Invalidate(ctx context.Context, keys ...string) error {
	c.Delete(ctx, keys...)
	return nil
}

// Close releases the cache's goroutines.
func (c *QueryCache) Close() {
	c.cache.Close()
}
