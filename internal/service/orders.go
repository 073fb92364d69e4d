package service

import (
	"context"
	"time"

	"github.com/safar/go-order-engine/internal/apperr"
	"github.com/safar/go-order-engine/internal/authz"
	"github.com/safar/go-order-engine/internal/cartcache"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type OrderStore interface {
	CheckoutFromCart(ctx context.Context, customerID int64) (*models.Order, error)
	CheckoutFromProduct(ctx context.Context, customerID, productID int64, quantity int) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	PlaceOrder(ctx context.Context, id int64, details models.PlacementDetails) (*models.Order, error)
	CancelOrder(ctx context.Context, id int64, by models.CanceledBy) (*models.Order, error)
	AdvanceOrderStatus(ctx context.Context, id int64, to models.OrderStatus, allowSkip bool) (*models.Order, bool, error)
	ListOrdersForCustomer(ctx context.Context, customerID int64, cursor string, limit int) (*store.CursorPage, error)
	ListPlacedOrdersForSeller(ctx context.Context, sellerID int64) ([]*models.Order, error)
	DeleteAllOrders(ctx context.Context) (int64, error)
}

type OrderService struct {
	store     OrderStore
	carts     cartcache.Cache
	allowSkip bool
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
}

func NewOrderService(store OrderStore, carts cartcache.Cache, allowSkip bool, log logrus.FieldLogger, m *metrics.Metrics) *OrderService {
	return &OrderService{
		store:     store,
		carts:     carts,
		allowSkip: allowSkip,
		log:       log.WithField("component", "order_service"),
		metrics:   m,
	}
}

const (
	ManageCancel       = "cancel"
	ManageUpdateStatus = "updateStatus"
)

func (s *OrderService) CheckoutCart(ctx context.Context, p models.Principal) (*models.Order, error) {
	if err := authz.Authorize(authz.Checkout, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	order, err := s.store.CheckoutFromCart(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	ctxCache, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.carts.Delete(ctxCache, p.ID); err != nil {
		s.log.WithError(err).WithField("customer_id", p.ID).Warn("cart cache invalidate failed")
	}

	s.recordTransition(models.EventOrderCreated, order)
	return order, nil
}

func (s *OrderService) CheckoutProduct(ctx context.Context, p models.Principal, productID int64, quantity int) (*models.Order, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if err := authz.Authorize(authz.Checkout, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	order, err := s.store.CheckoutFromProduct(ctx, p.ID, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.recordTransition(models.EventOrderCreated, order)
	return order, nil
}

// loadAuthorized fetches the order and checks op against its ownership. Owner
// and sellers never change after creation, so the check stays valid inside the
// later locking transaction.
func (s *OrderService) loadAuthorized(ctx context.Context, op authz.Operation, p models.Principal, id int64) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(op, p, authz.ForOrder(order)); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) Place(ctx context.Context, p models.Principal, id int64, details models.PlacementDetails) (*models.Order, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.loadAuthorized(ctx, authz.PlaceOrder, p, id); err != nil {
		return nil, err
	}

	order, err := s.store.PlaceOrder(ctx, id, details)
	if err != nil {
		return nil, err
	}

	s.recordTransition(models.EventOrderPlaced, order)
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, p models.Principal, id int64) (*models.Order, error) {
	return s.loadAuthorized(ctx, authz.ReadOrder, p, id)
}

func (s *OrderService) ListForCustomer(ctx context.Context, p models.Principal, cursor string, limit int) (*store.CursorPage, error) {
	if err := authz.Authorize(authz.ListCustomerOrders, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return s.store.ListOrdersForCustomer(ctx, p.ID, cursor, limit)
}

func (s *OrderService) ListPlacedForSeller(ctx context.Context, p models.Principal) ([]*models.Order, error) {
	if err := authz.Authorize(authz.ListSellerOrders, p, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.store.ListPlacedOrdersForSeller(ctx, p.ID)
}

func (s *OrderService) Cancel(ctx context.Context, p models.Principal, id int64) (*models.Order, error) {
	if _, err := s.loadAuthorized(ctx, authz.CancelOrder, p, id); err != nil {
		return nil, err
	}
	return s.cancel(ctx, p, id)
}

func (s *OrderService) cancel(ctx context.Context, p models.Principal, id int64) (*models.Order, error) {
	order, err := s.store.CancelOrder(ctx, id, models.CanceledByFor(p.Role))
	if err != nil {
		return nil, err
	}

	s.recordTransition(models.EventOrderCanceled, order)
	return order, nil
}

func (s *OrderService) Advance(ctx context.Context, p models.Principal, id int64, status models.OrderStatus) (*models.Order, error) {
	if !status.InFulfillmentFlow() {
		return nil, models.ErrUnknownStatus
	}
	if _, err := s.loadAuthorized(ctx, authz.AdvanceOrder, p, id); err != nil {
		return nil, err
	}
	return s.advance(ctx, p, id, status)
}

func (s *OrderService) advance(ctx context.Context, p models.Principal, id int64, status models.OrderStatus) (*models.Order, error) {
	order, skipped, err := s.store.AdvanceOrderStatus(ctx, id, status, s.allowSkip)
	if err != nil {
		return nil, err
	}

	if skipped {
		s.log.WithFields(logrus.Fields{
			"order_id":  order.ID,
			"seller_id": p.ID,
			"status":    order.Status,
		}).Warn("order status advanced past an intermediate step")
	}

	s.recordTransition(models.EventOrderStatusChanged, order)
	return order, nil
}

// Manage is the seller's single entry point: action "cancel" cancels the order,
// "updateStatus" advances it to status.
func (s *OrderService) Manage(ctx context.Context, p models.Principal, id int64, action string, status models.OrderStatus) (*models.Order, error) {
	switch action {
	case ManageCancel:
	case ManageUpdateStatus:
		if !status.InFulfillmentFlow() {
			return nil, models.ErrUnknownStatus
		}
	default:
		return nil, apperr.Validationf("invalid action %q: use %q or %q", action, ManageCancel, ManageUpdateStatus)
	}

	if _, err := s.loadAuthorized(ctx, authz.AdvanceOrder, p, id); err != nil {
		return nil, err
	}

	if action == ManageCancel {
		return s.cancel(ctx, p, id)
	}
	return s.advance(ctx, p, id, status)
}

func (s *OrderService) Purge(ctx context.Context, p models.Principal) (int64, error) {
	if err := authz.Authorize(authz.PurgeOrders, p, authz.Resource{}); err != nil {
		return 0, err
	}

	deleted, err := s.store.DeleteAllOrders(ctx)
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"admin_id": p.ID,
		"deleted":  deleted,
	}).Warn("all orders deleted")
	return deleted, nil
}

func (s *OrderService) recordTransition(event string, order *models.Order) {
	s.metrics.OrderEvents.WithLabelValues(event).Inc()
	s.log.WithFields(logrus.Fields{
		"event":    event,
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("order transition")
}
