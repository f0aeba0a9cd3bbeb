// Package idgen composes collision-free, roughly time-ordered 64-bit
// identifiers: the high bits carry seconds since a fixed epoch, the low 32
// bits carry a per-prefix, per-day counter incremented in the shared store.
package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/flashmart/seckill/internal/redisx"
)

// epoch is 2025-01-01T00:00:00Z. Identifiers order by wall clock to the
// second from that point on.
const epoch int64 = 1735689600

// sequenceBits is the width of the daily counter in the composed id.
const sequenceBits = 32

// Generator mints identifiers against the shared store.
type Generator struct {
	client *redisx.Client
	now    func() time.Time
}

// New creates a Generator backed by the given store client.
func New(client *redisx.Client) *Generator {
	return &Generator{client: client, now: time.Now}
}

// NextID returns the next identifier for the given key prefix. Counters are
// scoped per prefix and per UTC day; the store-side increment makes ids
// unique across every process sharing the store. Daily counter overflow past
// 32 bits is a capacity assumption, not handled here.
func (g *Generator) NextID(ctx context.Context, prefix string) (int64, error) {
	now := g.now().UTC()
	seq, err := g.client.Incr(ctx, counterKey(prefix, now))
	if err != nil {
		return 0, fmt.Errorf("next id for %q: %w", prefix, err)
	}
	return compose(now.Unix(), seq), nil
}

func counterKey(prefix string, now time.Time) string {
	return "incr:" + prefix + ":" + now.Format("20060102")
}

func compose(unixSeconds, seq int64) int64 {
	return (unixSeconds-epoch)<<sequenceBits | seq
}
