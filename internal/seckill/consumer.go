package seckill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/flashmart/seckill/internal/lock"
	"github.com/flashmart/seckill/internal/redisx"
	"github.com/flashmart/seckill/internal/store"
)

// Reservation is one admission unit read back from the stream.
type Reservation struct {
	OrderID   int64
	VoucherID int64
	UserID    int64
}

// Run is the admission log consumer: a single long-lived loop reading the
// live tail of the stream through the consumer-group cursor and
// materializing each reservation. Any failure while consuming switches to
// draining this consumer's pending entries before resuming the tail, so a
// crash mid-processing never silently loses an entry. Run only returns when
// ctx is done.
func (co *Coordinator) Run(ctx context.Context) error {
	if err := co.client.XGroupCreate(ctx, co.stream, co.group); err != nil {
		return fmt.Errorf("create consumer group %q: %w", co.group, err)
	}

	// Entries left unacknowledged by a previous run of this consumer are
	// drained before touching the live tail.
	co.drainPending(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		entries, err := co.client.XReadGroup(ctx, co.group, co.name, co.stream, ">", 1, co.block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			co.logger.Error("admission log read failed", "error", err)
			co.drainPending(ctx)
			continue
		}
		for _, e := range entries {
			if err := co.process(ctx, e); err != nil {
				co.logger.Error("admission entry failed", "entry", e.ID, "error", err)
				co.drainPending(ctx)
			}
		}
	}
}

// drainPending reprocesses this consumer's unacknowledged entries from the
// start of its pending list until none remain. Redelivery is expected here;
// process is idempotent against it.
func (co *Coordinator) drainPending(ctx context.Context) {
	for ctx.Err() == nil {
		entries, err := co.client.XReadGroup(ctx, co.group, co.name, co.stream, "0", 1, 0)
		if err != nil {
			co.logger.Error("pending list read failed", "error", err)
			if !sleepCtx(ctx, 20*time.Millisecond) {
				return
			}
			continue
		}
		if len(entries) == 0 {
			return
		}
		if err := co.process(ctx, entries[0]); err != nil {
			co.logger.Error("pending entry failed", "entry", entries[0].ID, "error", err)
			if !sleepCtx(ctx, 20*time.Millisecond) {
				return
			}
		}
	}
}

// process parses, materializes, and acknowledges one entry. Malformed
// entries are acknowledged and dropped so they cannot wedge the stream.
// Business drops return nil (the entry is done); only infrastructure faults
// return an error, leaving the entry pending for recovery.
func (co *Coordinator) process(ctx context.Context, e redisx.StreamEntry) error {
	r, err := parseReservation(e)
	if err != nil {
		co.logger.Error("dropping malformed admission entry", "entry", e.ID, "error", err)
		return co.ack(ctx, e.ID)
	}
	if err := co.materialize(ctx, r); err != nil {
		return err
	}
	return co.ack(ctx, e.ID)
}

func (co *Coordinator) ack(ctx context.Context, id string) error {
	if err := co.client.XAck(ctx, co.stream, co.group, id); err != nil {
		return fmt.Errorf("ack entry %s: %w", id, err)
	}
	return nil
}

// materialize commits one reservation against the persistence collaborator.
// The per-user lock and the re-validation are defense in depth: the
// reservation script already rules these races out, but redelivered entries
// must never produce a second order or a second decrement.
func (co *Coordinator) materialize(ctx context.Context, r Reservation) error {
	mu := lock.NewMutex(co.client, "order:"+strconv.FormatInt(r.UserID, 10))
	ok, err := mu.TryLock(ctx, co.lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		co.logger.Error("dropping reservation, user lock contended", "orderId", r.OrderID, "userId", r.UserID)
		return nil
	}
	defer func() {
		if err := mu.Unlock(context.WithoutCancel(ctx)); err != nil {
			co.logger.Error("failed to release user order lock", "userId", r.UserID, "error", err)
		}
	}()

	n, err := co.orders.CountOrders(ctx, r.UserID, r.VoucherID)
	if err != nil {
		return err
	}
	if n > 0 {
		co.logger.Error("dropping reservation, order already exists", "orderId", r.OrderID, "userId", r.UserID, "voucherId", r.VoucherID)
		return nil
	}

	err = co.orders.CreateVoucherOrder(ctx, &store.VoucherOrder{
		ID:        r.OrderID,
		UserID:    r.UserID,
		VoucherID: r.VoucherID,
	})
	if errors.Is(err, store.ErrStockConflict) {
		co.logger.Error("dropping reservation, stock exhausted at materialization", "orderId", r.OrderID, "voucherId", r.VoucherID)
		return nil
	}
	if err != nil {
		return err
	}
	co.logger.Debug("order committed", "orderId", r.OrderID, "userId", r.UserID, "voucherId", r.VoucherID)
	return nil
}

func parseReservation(e redisx.StreamEntry) (Reservation, error) {
	var r Reservation
	var err error
	if r.OrderID, err = strconv.ParseInt(e.Fields["id"], 10, 64); err != nil {
		return r, fmt.Errorf("bad order id %q: %w", e.Fields["id"], err)
	}
	if r.VoucherID, err = strconv.ParseInt(e.Fields["voucherId"], 10, 64); err != nil {
		return r, fmt.Errorf("bad voucher id %q: %w", e.Fields["voucherId"], err)
	}
	if r.UserID, err = strconv.ParseInt(e.Fields["userId"], 10, 64); err != nil {
		return r, fmt.Errorf("bad user id %q: %w", e.Fields["userId"], err)
	}
	return r, nil
}

// sleepCtx sleeps for d unless ctx finishes first. Returns false when ctx is
// done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
