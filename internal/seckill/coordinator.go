// Package seckill coordinates flash-sale order admission: an atomic
// eligibility-and-reservation script against the shared store, a durable
// ordered admission stream, and a crash-recoverable consumer that
// materializes reservations into persisted orders exactly once in effect.
package seckill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/flashmart/seckill/internal/idgen"
	"github.com/flashmart/seckill/internal/logx"
	"github.com/flashmart/seckill/internal/redisx"
	"github.com/flashmart/seckill/internal/store"
)

// Business rejections surfaced to the request caller. These are values, not
// failures: the request path reports them synchronously and nothing is
// enqueued.
var (
	ErrOutOfStock     = errors.New("voucher out of stock")
	ErrDuplicateOrder = errors.New("user already ordered this voucher")
)

// reserveScript performs the whole admission check atomically: reject when
// stock is exhausted or the user already holds a reservation, otherwise
// decrement stock, record the user in the dedup set, and append the
// reservation to the admission stream.
//
// KEYS: stock counter, dedup set, admission stream.
// ARGV: voucher id, user id, order id.
// Returns 0 reserved, 1 out of stock, 2 duplicate.
var reserveScript = rueidis.NewLuaScript(`
local stock = tonumber(redis.call('GET', KEYS[1]))
if stock == nil or stock <= 0 then
	return 1
end
if redis.call('SISMEMBER', KEYS[2], ARGV[2]) == 1 then
	return 2
end
redis.call('INCRBY', KEYS[1], -1)
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('XADD', KEYS[3], '*', 'id', ARGV[3], 'voucherId', ARGV[1], 'userId', ARGV[2])
return 0
`)

// OrderStore is the slice of the persistence collaborator the materializer
// needs. *store.Store satisfies it.
type OrderStore interface {
	CountOrders(ctx context.Context, userID, voucherID int64) (int64, error)
	CreateVoucherOrder(ctx context.Context, o *store.VoucherOrder) error
}

// Config tunes a Coordinator. Zero values get defaults.
type Config struct {
	// Stream is the admission log key. Defaults to "stream.orders".
	Stream string
	// Group is the consumer group name. Defaults to "g1".
	Group string
	// Consumer is this process's consumer name within the group. Defaults to "c1".
	Consumer string
	// LockTTL bounds the per-user materialization lock. Defaults to 5 seconds.
	LockTTL time.Duration
	// BlockTimeout bounds how long an empty stream read waits, which is also
	// the consumer's shutdown-check interval. Defaults to 2 seconds.
	BlockTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger logx.Logger
}

// Coordinator owns the admission pipeline for seckill vouchers.
type Coordinator struct {
	client  *redisx.Client
	ids     *idgen.Generator
	orders  OrderStore
	stream  string
	group   string
	name    string
	lockTTL time.Duration
	block   time.Duration
	logger  logx.Logger
}

// New wires a Coordinator. Run must be started separately for reservations
// to ever materialize.
func New(client *redisx.Client, ids *idgen.Generator, orders OrderStore, cfg Config) *Coordinator {
	if cfg.Stream == "" {
		cfg.Stream = "stream.orders"
	}
	if cfg.Group == "" {
		cfg.Group = "g1"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "c1"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.Default()
	}
	return &Coordinator{
		client:  client,
		ids:     ids,
		orders:  orders,
		stream:  cfg.Stream,
		group:   cfg.Group,
		name:    cfg.Consumer,
		lockTTL: cfg.LockTTL,
		block:   cfg.BlockTimeout,
		logger:  cfg.Logger,
	}
}

func stockKey(voucherID int64) string {
	return "seckill:stock:" + strconv.FormatInt(voucherID, 10)
}

func dedupKey(voucherID int64) string {
	return "seckill:order:" + strconv.FormatInt(voucherID, 10)
}

// PrimeStock seeds the stock counter for a voucher. Call it when the voucher
// is created, before the sale opens.
func (co *Coordinator) PrimeStock(ctx context.Context, voucherID, stock int64) error {
	if err := co.client.Set(ctx, stockKey(voucherID), strconv.FormatInt(stock, 10), 0); err != nil {
		return fmt.Errorf("prime stock for voucher %d: %w", voucherID, err)
	}
	return nil
}

// Reserve runs one admission attempt for (voucherID, userID). On success the
// reservation is already durably enqueued and the pre-generated order id is
// returned immediately; the caller does not wait for persistence. Rejections
// surface as ErrOutOfStock or ErrDuplicateOrder.
func (co *Coordinator) Reserve(ctx context.Context, voucherID, userID int64) (int64, error) {
	orderID, err := co.ids.NextID(ctx, "order")
	if err != nil {
		return 0, err
	}

	res, err := reserveScript.Exec(ctx, co.client.Raw(),
		[]string{stockKey(voucherID), dedupKey(voucherID), co.stream},
		[]string{
			strconv.FormatInt(voucherID, 10),
			strconv.FormatInt(userID, 10),
			strconv.FormatInt(orderID, 10),
		},
	).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("reserve voucher %d: %w", voucherID, err)
	}

	switch res {
	case 0:
		co.logger.Debug("reservation enqueued", "orderId", orderID, "voucherId", voucherID, "userId", userID)
		return orderID, nil
	case 1:
		return 0, ErrOutOfStock
	case 2:
		return 0, ErrDuplicateOrder
	default:
		return 0, fmt.Errorf("reserve voucher %d: unexpected script result %d", voucherID, res)
	}
}
