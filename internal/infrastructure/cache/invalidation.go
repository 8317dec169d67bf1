package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ytsoob/pkg/logger"
)

// InvalidationChannel is the NOTIFY channel carrying invalidated keys.
const InvalidationChannel = "query_cache_invalidated"

// keySeparator joins keys in one NOTIFY payload.
const keySeparator = "\n"

// Broadcaster drops keys locally and tells other instances to do the same.
type Broadcaster struct {
	local *QueryCache
	pool  *pgxpool.Pool
}

// NewBroadcaster creates a broadcaster over pool.
func NewBroadcaster(local *QueryCache, pool *pgxpool.Pool) *Broadcaster {
	return &Broadcaster{local: local, pool: pool}
}

// Invalidate implements mediator.Invalidator.
func (b *Broadcaster) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	b.local.Delete(ctx, keys...)
	if _, err := b.pool.Exec(ctx, "SELECT pg_notify($1, $2)", InvalidationChannel, strings.Join(keys, keySeparator)); err != nil {
		return fmt.Errorf("notify cache invalidation: %w", err)
	}
	return nil
}

// Listener applies invalidations broadcast by other instances.
// Serve makes it a suture.Service.
type Listener struct {
	pool  *pgxpool.Pool
	local *QueryCache
}

// NewListener creates a listener for the invalidation channel.
func NewListener(pool *pgxpool.Pool, local *QueryCache) *Listener {
	return &Listener{pool: pool, local: local}
}

// Serve holds a dedicated connection in LISTEN until ctx is cancelled,
// reconnecting after failures.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := l.pool.Acquire(ctx)
		if err != nil {
			logger.Error(ctx, "failed to acquire connection for LISTEN", "error", err)
			sleep(ctx, time.Second)
			continue
		}
		if _, err = conn.Exec(ctx, "LISTEN "+InvalidationChannel); err != nil {
			logger.Error(ctx, "failed to LISTEN", "error", err)
			conn.Release()
			sleep(ctx, time.Second)
			continue
		}

		logger.Info(ctx, "listening for cache invalidations", "channel", InvalidationChannel)
		l.wait(ctx, conn)
		conn.Release()
	}
}

func (l *Listener) wait(ctx context.Context, conn *pgxpool.Conn) {
	for {
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil {
				// idle timeout, keep listening
				continue
			}
			logger.Warn(ctx, "cache invalidation listener lost connection", "error", err)
			return
		}
		l.Apply(ctx, n.Payload)
	}
}

// Apply drops the keys carried by a NOTIFY payload.
func (l *Listener) Apply(ctx context.Context, payload string) {
	keys := splitKeys(payload)
	l.local.Delete(ctx, keys...)
	logger.Debug(ctx, "applied cache invalidation", "keys", len(keys))
}

func splitKeys(payload string) []string {
	parts := strings.Split(payload, keySeparator)
	keys := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
