package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flashmart/seckill/internal/lock"
	"github.com/flashmart/seckill/internal/redisx"
)

// LoadFunc fetches a value from the source of truth. Returning (nil, nil)
// means the id does not exist; that fact is cached too.
type LoadFunc[ID any, R any] func(ctx context.Context, id ID) (*R, error)

// Lookup reads the value for (entity, id) through the client's configured
// strategy, falling back to load on a miss and repopulating the cache with
// the given ttl. Loader errors propagate to the caller; corrupt cache
// payloads degrade to a source-of-truth read, never to a failure.
func Lookup[R any, ID any](ctx context.Context, c *Client, entity string, id ID, ttl time.Duration, load LoadFunc[ID, R]) (*R, error) {
	switch c.strategy {
	case MutexRebuild:
		return mutexRebuild(ctx, c, entity, id, ttl, load)
	case LogicalExpire:
		return logicalExpire(ctx, c, entity, id, ttl, load)
	default:
		return passThrough(ctx, c, entity, id, ttl, load)
	}
}

// passThrough is the baseline strategy: penetration-safe, no breakdown
// defense. Every concurrent caller racing a cold key invokes the loader.
func passThrough[R any, ID any](ctx context.Context, c *Client, entity string, id ID, ttl time.Duration, load LoadFunc[ID, R]) (*R, error) {
	key := Key(entity, id)
	payload, st, err := c.peek(ctx, key)
	if err != nil {
		return nil, err
	}
	switch st {
	case peekAbsent:
		return nil, nil
	case peekHit:
		if r, ok := decode[R](c, key, payload); ok {
			return r, nil
		}
		// corrupt entry: fall through to the loader
	}
	return loadAndStore(ctx, c, key, id, ttl, load)
}

// mutexRebuild bounds each miss episode to exactly one loader invocation.
// Losers sleep and re-check the cache; the winner double-checks after
// acquiring the lock, since the cache may have been repopulated between its
// last check and the acquisition.
func mutexRebuild[R any, ID any](ctx context.Context, c *Client, entity string, id ID, ttl time.Duration, load LoadFunc[ID, R]) (*R, error) {
	key := Key(entity, id)
	var mu *lock.Mutex
	for {
		payload, st, err := c.peek(ctx, key)
		if err != nil {
			return nil, err
		}
		if st == peekAbsent {
			return nil, nil
		}
		if st == peekHit {
			if r, ok := decode[R](c, key, payload); ok {
				return r, nil
			}
		}
		mu = lock.NewMutex(c.store, lockName(entity, id))
		ok, err := mu.TryLock(ctx, c.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}
	defer func() {
		if err := mu.Unlock(context.WithoutCancel(ctx)); err != nil {
			c.logger.Error("failed to release rebuild lock", "key", key, "error", err)
		}
	}()

	// Double-check: another winner may have repopulated the cache between
	// our last peek and the lock acquisition.
	payload, st, err := c.peek(ctx, key)
	if err != nil {
		return nil, err
	}
	if st == peekAbsent {
		return nil, nil
	}
	if st == peekHit {
		if r, ok := decode[R](c, key, payload); ok {
			return r, nil
		}
	}
	return loadAndStore(ctx, c, key, id, ttl, load)
}

// envelope wraps a logical-expiry entry. The entry itself carries no store
// TTL; expireAt alone decides freshness.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	ExpireAt time.Time       `json:"expireAt"`
}

// logicalExpire never blocks a caller on the loader. An absent entry is a
// cold-start gap and reads as nil; entries are expected to be pre-warmed via
// Prime. An expired entry is returned as-is while at most one rebuild task
// runs in the background.
func logicalExpire[R any, ID any](ctx context.Context, c *Client, entity string, id ID, ttl time.Duration, load LoadFunc[ID, R]) (*R, error) {
	key := Key(entity, id)
	payload, err := c.store.Get(ctx, key)
	if redisx.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		c.logger.Error("corrupt cache envelope", "key", key, "error", err)
		return nil, nil
	}
	r, ok := decode[R](c, key, string(env.Data))
	if !ok {
		return nil, nil
	}
	if env.ExpireAt.After(time.Now()) {
		return r, nil
	}

	// Stale: serve it, and try to schedule exactly one rebuild.
	mu := lock.NewMutex(c.store, lockName(entity, id))
	gotLock, err := mu.TryLock(ctx, c.lockTTL)
	if err != nil {
		c.logger.Error("rebuild lock attempt failed", "key", key, "error", err)
		return r, nil
	}
	if gotLock {
		bg := context.WithoutCancel(ctx)
		submitted := c.pool.submit(func() {
			rebuildEntry(bg, c, key, id, ttl, load, mu)
		})
		if !submitted {
			c.logger.Debug("rebuild queue full, serving stale", "key", key)
			if err := mu.Unlock(bg); err != nil {
				c.logger.Error("failed to release rebuild lock", "key", key, "error", err)
			}
		}
	}
	return r, nil
}

// rebuildEntry runs on the worker pool: double-check expiry under the lock,
// reload, rewrap with a fresh expireAt, write back, release the lock.
func rebuildEntry[R any, ID any](ctx context.Context, c *Client, key string, id ID, ttl time.Duration, load LoadFunc[ID, R], mu *lock.Mutex) {
	ctx, cancel := context.WithTimeout(ctx, c.lockTTL)
	defer cancel()
	defer func() {
		if err := mu.Unlock(ctx); err != nil {
			c.logger.Error("failed to release rebuild lock", "key", key, "error", err)
		}
	}()

	// Double-check: a previous rebuild may have refreshed the entry while we
	// waited in the queue.
	if payload, err := c.store.Get(ctx, key); err == nil {
		var env envelope
		if json.Unmarshal([]byte(payload), &env) == nil && env.ExpireAt.After(time.Now()) {
			return
		}
	}

	r, err := load(ctx, id)
	if err != nil {
		c.logger.Error("rebuild load failed", "key", key, "error", err)
		return
	}
	if err := writeEnvelope(ctx, c, key, r, ttl); err != nil {
		c.logger.Error("rebuild write failed", "key", key, "error", err)
	}
}

// Prime writes (entity, id) as a logical-expiry entry valid for ttl. Use it
// to pre-warm hot keys before enabling the LogicalExpire strategy on them.
func Prime[R any](ctx context.Context, c *Client, entity string, id any, value *R, ttl time.Duration) error {
	return writeEnvelope(ctx, c, Key(entity, id), value, ttl)
}

func writeEnvelope[R any](ctx context.Context, c *Client, key string, value *R, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %q: %w", key, err)
	}
	buf, err := json.Marshal(envelope{Data: data, ExpireAt: time.Now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode cache envelope for %q: %w", key, err)
	}
	return c.store.Set(ctx, key, string(buf), 0)
}

// loadAndStore consults the source of truth and repopulates the cache: an
// empty marker with the short null TTL for absent ids, the serialized value
// with the full ttl otherwise. Cache write failures degrade to uncached
// reads rather than failing the request.
func loadAndStore[R any, ID any](ctx context.Context, c *Client, key string, id ID, ttl time.Duration, load LoadFunc[ID, R]) (*R, error) {
	r, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		if err := c.store.Set(ctx, key, "", c.nullTTL); err != nil {
			c.logger.Error("failed to cache absent marker", "key", key, "error", err)
		}
		return nil, nil
	}
	buf, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode cache value for %q: %w", key, err)
	}
	if err := c.store.Set(ctx, key, string(buf), ttl); err != nil {
		c.logger.Error("failed to cache value", "key", key, "error", err)
	}
	return r, nil
}

func decode[R any](c *Client, key, payload string) (*R, bool) {
	var r R
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		c.logger.Error("corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	return &r, true
}
