package cart

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Store reads carts through the cache and clears them after settlement.
type Store struct {
	repo            CartRepository
	cache           CartCache
	sfg             singleflight.Group
	defaultCurrency string
}

func NewStore(repo CartRepository, cache CartCache, defaultCurrency string) *Store {
	return &Store{repo: repo, cache: cache, defaultCurrency: defaultCurrency}
}

func (s *Store) GetCart(ctx context.Context, userID string) (*Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (any, error) {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			logger.FromContext(ctx).Warn("cart cache get failed", "user_id", userID, "error", err)
		}

		stored, err := s.repo.GetCart(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			return &Cart{UserID: userID, Currency: s.defaultCurrency}, nil
		}
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, userID, stored); err != nil {
			logger.FromContext(ctx).Warn("cart cache set failed", "user_id", userID, "error", err)
		}
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cart), nil
}

// Snapshot freezes the user's current cart for a checkout attempt. It always reads the cart store
// because the cache is not invalidated when the cart is edited elsewhere.
func (s *Store) Snapshot(ctx context.Context, userID string) (domain.CartSnapshot, error) {
	c, err := s.repo.GetCart(ctx, userID)
	switch {
	case errors.Is(err, ErrCartNotFound):
		c = &Cart{UserID: userID, Currency: s.defaultCurrency}
	case err != nil:
		return domain.CartSnapshot{}, err
	default:
		if err := s.cache.Set(ctx, userID, c); err != nil {
			logger.FromContext(ctx).Warn("cart cache refresh failed", "user_id", userID, "error", err)
		}
	}
	return c.Freeze(time.Now().UTC(), s.defaultCurrency), nil
}

// Preview returns the cart as display data. It may be served from the cache, so it must never
// be charged.
func (s *Store) Preview(ctx context.Context, userID string) (domain.CartSnapshot, error) {
	c, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return c.Freeze(time.Now().UTC(), s.defaultCurrency), nil
}

// ClearCart empties the user's cart. A cart that is already gone counts as cleared.
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}
	s.invalidateCache(ctx, userID)
	return nil
}

// ClearCartIfUnchanged empties the cart unless the user modified it after since.
func (s *Store) ClearCartIfUnchanged(ctx context.Context, userID string, since time.Time) error {
	err := s.repo.DeleteCartUpdatedBefore(ctx, userID, since)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}
	s.invalidateCache(ctx, userID)
	return nil
}

func (s *Store) invalidateCache(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		logger.FromContext(ctx).Warn("cart cache invalidate failed", "user_id", userID, "error", err)
	}
}
