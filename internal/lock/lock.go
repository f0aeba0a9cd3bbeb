// Package lock implements named, TTL-bound mutual exclusion on top of the
// shared key-value store. Acquisition is a single SET NX; release is an
// atomic compare-and-delete so a holder can never remove a lock that was
// re-acquired by someone else after its own TTL expired.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/flashmart/seckill/internal/redisx"
)

// KeyPrefix namespaces every lock key in the store.
const KeyPrefix = "lock:"

// unlockScript deletes the lock key only while the stored token still
// belongs to this holder.
var unlockScript = rueidis.NewLuaScript(`if redis.call("GET",KEYS[1]) == ARGV[1] then return redis.call("DEL",KEYS[1]) else return 0 end`)

// Mutex is a handle on one named lock for one acquiring execution context.
// Create a fresh Mutex per acquisition attempt; the owner token is unique to
// the Mutex, not to the process.
type Mutex struct {
	client *redisx.Client
	key    string
	token  string
}

// NewMutex prepares a lock handle for the given name. It does not touch the
// store.
func NewMutex(client *redisx.Client, name string) *Mutex {
	return &Mutex{
		client: client,
		key:    KeyPrefix + name,
		token:  uuid.New().String(),
	}
}

// TryLock makes a single attempt to acquire the lock with the given ttl.
// It never blocks and never retries; callers that want blocking semantics
// loop with their own sleep interval. Returns true iff the lock was created.
func (m *Mutex) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key, m.token, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", m.key, err)
	}
	return ok, nil
}

// Unlock releases the lock if this Mutex still owns it. Releasing a lock
// that expired and was taken over by another holder is a silent no-op.
func (m *Mutex) Unlock(ctx context.Context) error {
	err := unlockScript.Exec(ctx, m.client.Raw(), []string{m.key}, []string{m.token}).Error()
	if err != nil && !rueidis.IsRedisNil(err) {
		return fmt.Errorf("release lock %q: %w", m.key, err)
	}
	return nil
}

// Token returns the owner token, exposed for tests and diagnostics.
func (m *Mutex) Token() string {
	return m.token
}
