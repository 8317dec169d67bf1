package mediator

import (
	"context"
	"time"

	"ytsoob/pkg/logger"
)

// Cache stores query responses.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

// Invalidator drops cached responses.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Caching serves responses from cache under key(req). An empty key bypasses
// the cache. Failed responses are never cached.
func Caching[Req, Resp any](cache Cache, key func(Req) string, ttl time.Duration) Behavior[Req, Resp] {
	return func(next HandlerFunc[Req, Resp]) HandlerFunc[Req, Resp] {
		return func(ctx context.Context, req Req) (Resp, error) {
			k := key(req)
			if k == "" {
				return next(ctx, req)
			}
			if v, ok := cache.Get(ctx, k); ok {
				if resp, ok := v.(Resp); ok {
					return resp, nil
				}
			}

			resp, err := next(ctx, req)
			if err != nil {
				return resp, err
			}
			cache.Set(ctx, k, resp, ttl)
			return resp, nil
		}
	}
}

// InvalidateCaching drops keys(req, resp) after the inner handler succeeds.
// Place it outside the transactional behavior so invalidation follows commit.
// An invalidation failure is logged and does not fail the request.
func InvalidateCaching[Req, Resp any](inv Invalidator, keys func(Req, Resp) []string) Behavior[Req, Resp] {
	return func(next HandlerFunc[Req, Resp]) HandlerFunc[Req, Resp] {
		return func(ctx context.Context, req Req) (Resp, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return resp, err
			}
			if ks := keys(req, resp); len(ks) > 0 {
				if ierr := inv.Invalidate(ctx, ks...); ierr != nil {
					logger.Warn(ctx, "cache invalidation failed", "keys", ks, "error", ierr)
				}
			}
			return resp, nil
		}
	}
}
