package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/safar/go-order-engine/internal/apperr"
	"github.com/safar/go-order-engine/internal/authz"
	"github.com/safar/go-order-engine/internal/cartcache"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type CartStore interface {
	GetCart(ctx context.Context, customerID int64) (*models.Cart, error)
	AddCartItem(ctx context.Context, customerID, productID int64, quantity int) (*models.Cart, error)
	UpdateCartItem(ctx context.Context, customerID, productID int64, quantity int) (*models.Cart, error)
	RemoveCartItem(ctx context.Context, customerID, productID int64) (*models.Cart, error)
	ClearCart(ctx context.Context, customerID int64) (*models.Cart, error)
}

type CartService struct {
	store   CartStore
	cache   cartcache.Cache
	sfg     singleflight.Group
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewCartService(store CartStore, cache cartcache.Cache, log logrus.FieldLogger, m *metrics.Metrics) *CartService {
	return &CartService{
		store:   store,
		cache:   cache,
		log:     log.WithField("component", "cart_service"),
		metrics: m,
	}
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return apperr.Validationf("quantity must be at least 1, got %d", quantity)
	}
	return nil
}

func (s *CartService) AddItem(ctx context.Context, p models.Principal, productID int64, quantity int) (*models.Cart, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if err := authz.Authorize(authz.MutateCart, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	cart, err := s.store.AddCartItem(ctx, p.ID, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(p.ID)
	return cart, nil
}

func (s *CartService) UpdateItem(ctx context.Context, p models.Principal, productID int64, quantity int) (*models.Cart, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if err := authz.Authorize(authz.MutateCart, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	cart, err := s.store.UpdateCartItem(ctx, p.ID, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(p.ID)
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, p models.Principal, productID int64) (*models.Cart, error) {
	if err := authz.Authorize(authz.MutateCart, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	cart, err := s.store.RemoveCartItem(ctx, p.ID, productID)
	if err != nil {
		return nil, err
	}

	s.invalidate(p.ID)
	return cart, nil
}

func (s *CartService) Clear(ctx context.Context, p models.Principal) (*models.Cart, error) {
	if err := authz.Authorize(authz.MutateCart, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	cart, err := s.store.ClearCart(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	s.invalidate(p.ID)
	return cart, nil
}

// cartFetchTimeout bounds a shared cart read. It is detached from any one
// caller so a canceled leader does not fail the callers waiting on it.
const cartFetchTimeout = 2 * time.Second

// View serves the cart from cache when possible. Concurrent misses for the same
// customer share one database read.
func (s *CartService) View(ctx context.Context, p models.Principal) (*models.Cart, error) {
	if err := authz.Authorize(authz.ViewCart, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	ch := s.sfg.DoChan(strconv.FormatInt(p.ID, 10), func() (interface{}, error) {
		return s.fetchCart(p.ID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Cart), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CartService) fetchCart(customerID int64) (*models.Cart, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cartFetchTimeout)
	defer cancel()

	cart, err := s.cache.Get(ctx, customerID)
	if err == nil {
		s.metrics.CartCache.WithLabelValues("hit").Inc()
		return cart, nil
	}

	s.metrics.CartCache.WithLabelValues("miss").Inc()
	if !errors.Is(err, cartcache.ErrCacheMiss) {
		s.log.WithError(err).Warn("cart cache get failed")
	}

	cart, err = s.store.GetCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, customerID, cart); err != nil {
		s.log.WithError(err).Warn("cart cache set failed")
	}
	return cart, nil
}

func (s *CartService) Summary(ctx context.Context, p models.Principal) (models.CartSummary, error) {
	cart, err := s.View(ctx, p)
	if err != nil {
		return models.CartSummary{}, err
	}
	return cart.Summary(), nil
}

// invalidate drops the cached cart after a committed change, on its own
// timeout rather than the request's.
func (s *CartService) invalidate(customerID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, customerID); err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Warn("cart cache invalidate failed")
	}
}
