package store

import (
	"context"
)

// VoucherOrder is a materialized flash-sale order. At most one exists per
// (UserID, VoucherID) pair.
type VoucherOrder struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"userId"`
	VoucherID int64 `json:"voucherId"`
}

// CountOrders returns how many orders the user already holds for the
// voucher. The materializer uses it to re-validate reservations before
// committing.
func (s *Store) CountOrders(ctx context.Context, userID, voucherID int64) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM tb_voucher_order
		WHERE user_id = $1 AND voucher_id = $2
	`, userID, voucherID).Scan(&n)
	return n, err
}

// CreateVoucherOrder commits the guarded stock decrement and the order
// insert in one transaction. When the guard matches no row (stock exhausted)
// it returns ErrStockConflict and nothing is written.
func (s *Store) CreateVoucherOrder(ctx context.Context, o *VoucherOrder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE tb_seckill_voucher
		SET stock = stock - 1
		WHERE voucher_id = $1 AND stock > 0
	`, o.VoucherID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrStockConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tb_voucher_order (id, user_id, voucher_id, create_time)
		VALUES ($1, $2, $3, now())
	`, o.ID, o.UserID, o.VoucherID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	tx = nil
	return nil
}
