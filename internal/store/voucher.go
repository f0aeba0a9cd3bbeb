package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// SeckillVoucher is a limited-stock voucher open for flash-sale ordering
// between BeginTime and EndTime.
type SeckillVoucher struct {
	VoucherID int64     `json:"voucherId"`
	Stock     int64     `json:"stock"`
	BeginTime time.Time `json:"beginTime"`
	EndTime   time.Time `json:"endTime"`
}

// GetSeckillVoucher returns the voucher with the given id, or (nil, nil)
// when it does not exist.
func (s *Store) GetSeckillVoucher(ctx context.Context, voucherID int64) (*SeckillVoucher, error) {
	var v SeckillVoucher
	err := s.pool.QueryRow(ctx, `
		SELECT voucher_id, stock, begin_time, end_time
		FROM tb_seckill_voucher
		WHERE voucher_id = $1
	`, voucherID).Scan(&v.VoucherID, &v.Stock, &v.BeginTime, &v.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateSeckillVoucher inserts v. The caller is responsible for priming the
// stock counter in the key-value store afterwards.
func (s *Store) CreateSeckillVoucher(ctx context.Context, v *SeckillVoucher) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tb_seckill_voucher (voucher_id, stock, begin_time, end_time)
		VALUES ($1, $2, $3, $4)
	`, v.VoucherID, v.Stock, v.BeginTime, v.EndTime)
	return err
}
