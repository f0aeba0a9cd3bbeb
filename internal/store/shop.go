package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Shop is the hot read-path entity served through the cache layer.
type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	AvgPrice  int64     `json:"avgPrice"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetShop returns the shop with the given id, or (nil, nil) when it does not
// exist. The nil result is what the cache layer records as "known absent".
func (s *Store) GetShop(ctx context.Context, id int64) (*Shop, error) {
	var shop Shop
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, address, avg_price, score, updated_at
		FROM tb_shop
		WHERE id = $1
	`, id).Scan(&shop.ID, &shop.Name, &shop.Address, &shop.AvgPrice, &shop.Score, &shop.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// UpdateShop persists shop. The caller must invalidate the cached entry
// after this commits.
func (s *Store) UpdateShop(ctx context.Context, shop *Shop) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tb_shop
		SET name = $2, address = $3, avg_price = $4, score = $5, updated_at = now()
		WHERE id = $1
	`, shop.ID, shop.Name, shop.Address, shop.AvgPrice, shop.Score)
	return err
}
