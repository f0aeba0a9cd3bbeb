// Package cache implements a generic cache-aside layer over the shared
// key-value store. It defends against penetration (misses for keys absent
// from the source of truth are themselves cached), breakdown (a hot key
// expiring under concurrent load is rebuilt by exactly one caller), and
// unbounded staleness under concurrent rebuild.
//
// Three interchangeable read strategies share one contract and are selected
// by configuration:
//
//   - PassThrough: penetration defense only; every true miss hits the loader.
//   - MutexRebuild: a distributed lock bounds each miss episode to one loader
//     call; contending callers poll the cache until the winner repopulates it.
//   - LogicalExpire: entries carry their own expiry and no store TTL; stale
//     reads return immediately while one caller schedules an asynchronous
//     rebuild on a bounded worker pool.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flashmart/seckill/internal/logx"
	"github.com/flashmart/seckill/internal/redisx"
)

// Strategy selects how Lookup handles cache misses and expiry.
type Strategy int

const (
	// PassThrough reads through to the loader on every true miss.
	PassThrough Strategy = iota
	// MutexRebuild serializes rebuilds of one key behind a distributed lock.
	MutexRebuild
	// LogicalExpire serves stale entries while rebuilding asynchronously.
	LogicalExpire
)

// Options configures a Client. All fields are optional except Strategy.
type Options struct {
	// Strategy selects the miss-handling behavior for all lookups on this client.
	Strategy Strategy

	// NullTTL is the store TTL for cached "known absent" markers. Defaults to 2 minutes.
	NullTTL time.Duration

	// LockTTL bounds how long a rebuild lock can be held. Defaults to 10 seconds.
	LockTTL time.Duration

	// RetryInterval is how long mutex-strategy losers sleep between cache
	// re-checks while a rebuild is in flight. Defaults to 50 milliseconds.
	RetryInterval time.Duration

	// RebuildWorkers is the size of the asynchronous rebuild pool used by the
	// logical-expiry strategy. Defaults to 10.
	RebuildWorkers int

	// RebuildQueue is the capacity of the rebuild task queue. Rebuild requests
	// beyond capacity are skipped (the stale value keeps being served until a
	// later read schedules the rebuild). Defaults to 256.
	RebuildQueue int

	// Logger defaults to slog.Default().
	Logger logx.Logger
}

// Client coordinates cache-aside reads for one store. Values are cached
// under "cache:<entity>:<id>"; rebuild locks live under "lock:<entity>:<id>".
type Client struct {
	store         *redisx.Client
	strategy      Strategy
	nullTTL       time.Duration
	lockTTL       time.Duration
	retryInterval time.Duration
	logger        logx.Logger
	pool          *rebuildPool
}

// New validates opt, applies defaults, and returns a ready Client.
func New(store *redisx.Client, opt Options) (*Client, error) {
	if store == nil {
		return nil, errors.New("store client must not be nil")
	}
	if opt.LockTTL < 0 || opt.NullTTL < 0 {
		return nil, errors.New("TTLs must not be negative")
	}
	if opt.LockTTL > 0 && opt.LockTTL < 100*time.Millisecond {
		return nil, errors.New("LockTTL should be at least 100ms to avoid excessive lock churn")
	}
	if opt.NullTTL == 0 {
		opt.NullTTL = 2 * time.Minute
	}
	if opt.LockTTL == 0 {
		opt.LockTTL = 10 * time.Second
	}
	if opt.RetryInterval <= 0 {
		opt.RetryInterval = 50 * time.Millisecond
	}
	if opt.RebuildWorkers <= 0 {
		opt.RebuildWorkers = 10
	}
	if opt.RebuildQueue <= 0 {
		opt.RebuildQueue = 256
	}
	if opt.Logger == nil {
		opt.Logger = logx.Default()
	}

	c := &Client{
		store:         store,
		strategy:      opt.Strategy,
		nullTTL:       opt.NullTTL,
		lockTTL:       opt.LockTTL,
		retryInterval: opt.RetryInterval,
		logger:        opt.Logger,
	}
	if opt.Strategy == LogicalExpire {
		c.pool = newRebuildPool(opt.RebuildWorkers, opt.RebuildQueue)
	}
	return c, nil
}

// Close drains the rebuild pool. No lookups may be issued after Close.
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.close()
	}
}

// Invalidate removes the cached entry for (entity, id). Callers must invoke
// it after every committed source-of-truth mutation, before treating the
// write as complete.
func (c *Client) Invalidate(ctx context.Context, entity string, id any) error {
	if err := c.store.Del(ctx, Key(entity, id)); err != nil {
		return fmt.Errorf("invalidate %s %v: %w", entity, id, err)
	}
	return nil
}

// Key builds the cache key for (entity, id).
func Key(entity string, id any) string {
	return fmt.Sprintf("cache:%s:%v", entity, id)
}

func lockName(entity string, id any) string {
	return fmt.Sprintf("%s:%v", entity, id)
}

type peekState int

const (
	peekMiss peekState = iota
	peekAbsent
	peekHit
)

// peek classifies the current cache entry: a true miss (no key), a cached
// "known absent" marker (empty payload), or a hit with a payload.
func (c *Client) peek(ctx context.Context, key string) (string, peekState, error) {
	val, err := c.store.Get(ctx, key)
	if redisx.IsNil(err) {
		return "", peekMiss, nil
	}
	if err != nil {
		return "", peekMiss, err
	}
	if val == "" {
		return "", peekAbsent, nil
	}
	return val, peekHit, nil
}
