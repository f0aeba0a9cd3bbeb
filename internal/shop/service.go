// Package shop serves the hot shop read path through the cache layer and
// keeps the cache coherent with shop writes.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flashmart/seckill/internal/cache"
	"github.com/flashmart/seckill/internal/store"
)

// Store is the slice of the persistence collaborator this service needs.
// *store.Store satisfies it.
type Store interface {
	GetShop(ctx context.Context, id int64) (*store.Shop, error)
	UpdateShop(ctx context.Context, shop *store.Shop) error
}

// Service reads shops through the configured cache strategy and invalidates
// on writes.
type Service struct {
	cache *cache.Client
	shops Store
	ttl   time.Duration
}

// NewService wires the shop service. ttl is the cache lifetime of a shop
// entry (logical lifetime under the logical-expiry strategy).
func NewService(c *cache.Client, shops Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{cache: c, shops: shops, ttl: ttl}
}

// GetByID returns the shop, or (nil, nil) when it does not exist.
func (s *Service) GetByID(ctx context.Context, id int64) (*store.Shop, error) {
	return cache.Lookup(ctx, s.cache, "shop", id, s.ttl, s.shops.GetShop)
}

// Update persists the shop and then invalidates its cache entry; the write
// is not complete until the invalidation has run.
func (s *Service) Update(ctx context.Context, shop *store.Shop) error {
	if shop.ID == 0 {
		return errors.New("shop id required")
	}
	if err := s.shops.UpdateShop(ctx, shop); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, "shop", shop.ID)
}

// Warm pre-loads the shop into the cache as a logical-expiry entry. Required
// before serving a key under the LogicalExpire strategy, which treats absent
// entries as "does not exist".
func (s *Service) Warm(ctx context.Context, id int64) error {
	shop, err := s.shops.GetShop(ctx, id)
	if err != nil {
		return err
	}
	if shop == nil {
		return fmt.Errorf("shop %d not found", id)
	}
	return cache.Prime(ctx, s.cache, "shop", id, shop, s.ttl)
}
