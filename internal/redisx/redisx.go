// Package redisx wraps the rueidis client with the typed operations the rest
// of the system needs: plain string keys, counters, hashes, and the admission
// stream. Components that run Lua scripts reach the underlying client via Raw.
package redisx

import (
	"context"
	"strings"
	"time"

	"github.com/redis/rueidis"
)

// Client is a thin typed wrapper over a rueidis connection.
type Client struct {
	rdb rueidis.Client
}

// Dial connects to the store at the given addresses.
func Dial(addrs []string) (*Client, error) {
	rdb, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		DisableCache: true,
	})
	if err != nil {
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

// Wrap adopts an existing rueidis client. The caller keeps ownership of it.
func Wrap(rdb rueidis.Client) *Client {
	return &Client{rdb: rdb}
}

// Raw exposes the underlying rueidis client for Lua script execution.
func (c *Client) Raw() rueidis.Client {
	return c.rdb
}

// Close shuts down the underlying connection.
func (c *Client) Close() {
	c.rdb.Close()
}

// IsNil reports whether err is the store's "no such key" reply.
func IsNil(err error) bool {
	return rueidis.IsRedisNil(err)
}

// Get returns the string value at key. A missing key yields an error for
// which IsNil returns true.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Do(ctx, c.rdb.B().Get().Key(key).Build()).ToString()
}

// Set writes value at key. A non-positive ttl stores the key without expiry.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl > 0 {
		return c.rdb.Do(ctx, c.rdb.B().Set().Key(key).Value(value).Px(ttl).Build()).Error()
	}
	return c.rdb.Do(ctx, c.rdb.B().Set().Key(key).Value(value).Build()).Error()
}

// SetNX writes value at key with the given ttl only if the key is absent.
// Returns true iff the key was created.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	err := c.rdb.Do(ctx, c.rdb.B().Set().Key(key).Value(value).Nx().Px(ttl).Build()).Error()
	if rueidis.IsRedisNil(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Del removes the given keys. Missing keys are not an error.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Do(ctx, c.rdb.B().Del().Key(keys...).Build()).Error()
}

// Incr atomically increments the counter at key and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Do(ctx, c.rdb.B().Incr().Key(key).Build()).AsInt64()
}

// Expire resets the ttl of key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Do(ctx, c.rdb.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build()).Error()
}

// HSet writes the given fields into the hash at key.
func (c *Client) HSet(ctx context.Context, key string, fields map[string]string) error {
	cmd := c.rdb.B().Hset().Key(key).FieldValue()
	for f, v := range fields {
		cmd = cmd.FieldValue(f, v)
	}
	return c.rdb.Do(ctx, cmd.Build()).Error()
}

// HGetAll returns all fields of the hash at key. A missing key yields an
// empty map, not an error.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.Do(ctx, c.rdb.B().Hgetall().Key(key).Build()).AsStrMap()
}

// StreamEntry is one record read from an admission stream.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// XGroupCreate creates a consumer group on stream, creating the stream if it
// does not exist yet. Re-creating an existing group is not an error.
func (c *Client) XGroupCreate(ctx context.Context, stream, group string) error {
	err := c.rdb.Do(ctx, c.rdb.B().XgroupCreate().Key(stream).Group(group).Id("0").Mkstream().Build()).Error()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// XReadGroup reads up to count entries from stream on behalf of the consumer
// group cursor. id ">" reads the live tail; id "0" reads the consumer's own
// pending entries. A positive block bounds how long an empty read waits.
// An empty read returns (nil, nil).
func (c *Client) XReadGroup(ctx context.Context, group, consumer, stream, id string, count int64, block time.Duration) ([]StreamEntry, error) {
	var cmd rueidis.Completed
	if block > 0 {
		cmd = c.rdb.B().Xreadgroup().Group(group, consumer).Count(count).Block(block.Milliseconds()).Streams().Key(stream).Id(id).Build()
	} else {
		cmd = c.rdb.B().Xreadgroup().Group(group, consumer).Count(count).Streams().Key(stream).Id(id).Build()
	}
	res, err := c.rdb.Do(ctx, cmd).AsXRead()
	if rueidis.IsRedisNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entries := make([]StreamEntry, 0, count)
	for _, e := range res[stream] {
		entries = append(entries, StreamEntry{ID: e.ID, Fields: e.FieldValues})
	}
	return entries, nil
}

// XAck acknowledges the given entry ids for the consumer group.
func (c *Client) XAck(ctx context.Context, stream, group string, ids ...string) error {
	return c.rdb.Do(ctx, c.rdb.B().Xack().Key(stream).Group(group).Id(ids...).Build()).Error()
}
