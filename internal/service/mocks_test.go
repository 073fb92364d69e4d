package service

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/safar/go-order-engine/internal/cartcache"
	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var (
	customer = models.Principal{ID: 1, Role: models.RoleCustomer}
	seller   = models.Principal{ID: 10, Role: models.RoleSeller}
	admin    = models.Principal{ID: 99, Role: models.RoleAdmin}
)

func newTestDeps() (logrus.FieldLogger, *test.Hook, *metrics.Metrics) {
	log, hook := test.NewNullLogger()
	return log, hook, metrics.New(prometheus.NewRegistry())
}

// MockCartStore implements CartStore. When Release is set, GetCart signals
// Started and waits on Release, then fails with the context's error if the
// context it was given has ended.
type MockCartStore struct {
	mu       sync.Mutex
	Cart     *models.Cart
	Err      error
	GetCalls int
	Calls    []string
	Started  chan struct{}
	Release  chan struct{}
}

func (m *MockCartStore) GetCart(ctx context.Context, _ int64) (*models.Cart, error) {
	m.mu.Lock()
	m.GetCalls++
	started, release := m.Started, m.Release
	m.mu.Unlock()

	if release != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Cart == nil {
		return nil, database.ErrCartNotFound
	}
	return m.Cart, m.Err
}

func (m *MockCartStore) record(call string) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
	return m.Cart, m.Err
}

func (m *MockCartStore) AddCartItem(context.Context, int64, int64, int) (*models.Cart, error) {
	return m.record("add")
}

func (m *MockCartStore) UpdateCartItem(context.Context, int64, int64, int) (*models.Cart, error) {
	return m.record("update")
}

func (m *MockCartStore) RemoveCartItem(context.Context, int64, int64) (*models.Cart, error) {
	return m.record("remove")
}

func (m *MockCartStore) ClearCart(context.Context, int64) (*models.Cart, error) {
	return m.record("clear")
}

// MockCache is an in-memory cartcache.Cache that counts deletes.
type MockCache struct {
	mu      sync.Mutex
	carts   map[int64]*models.Cart
	Deletes int
	GetErr  error
}

func NewMockCache() *MockCache {
	return &MockCache{carts: make(map[int64]*models.Cart)}
}

func (c *MockCache) Get(_ context.Context, id int64) (*models.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	if cart, ok := c.carts[id]; ok {
		return cart, nil
	}
	return nil, cartcache.ErrCacheMiss
}

func (c *MockCache) Set(_ context.Context, id int64, cart *models.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[id] = cart
	return nil
}

func (c *MockCache) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deletes++
	delete(c.carts, id)
	return nil
}

// MockOrderStore implements OrderStore over a fixed order.
type MockOrderStore struct {
	Order      *models.Order
	Err        error
	Skipped    bool
	Calls      []string
	CanceledBy models.CanceledBy
	AdvancedTo models.OrderStatus
	AllowSkip  bool
	ListLimit  int
	PurgeCount int64
	PlacedWith models.PlacementDetails
}

func (m *MockOrderStore) CheckoutFromCart(context.Context, int64) (*models.Order, error) {
	m.Calls = append(m.Calls, "checkout_cart")
	return m.Order, m.Err
}

func (m *MockOrderStore) CheckoutFromProduct(context.Context, int64, int64, int) (*models.Order, error) {
	m.Calls = append(m.Calls, "checkout_product")
	return m.Order, m.Err
}

func (m *MockOrderStore) GetOrder(context.Context, int64) (*models.Order, error) {
	m.Calls = append(m.Calls, "get")
	if m.Order == nil {
		return nil, database.ErrOrderNotFound
	}
	return m.Order, nil
}

func (m *MockOrderStore) PlaceOrder(_ context.Context, _ int64, d models.PlacementDetails) (*models.Order, error) {
	m.Calls = append(m.Calls, "place")
	m.PlacedWith = d
	return m.Order, m.Err
}

func (m *MockOrderStore) CancelOrder(_ context.Context, _ int64, by models.CanceledBy) (*models.Order, error) {
	m.Calls = append(m.Calls, "cancel")
	m.CanceledBy = by
	return m.Order, m.Err
}

func (m *MockOrderStore) AdvanceOrderStatus(_ context.Context, _ int64, to models.OrderStatus, allowSkip bool) (*models.Order, bool, error) {
	m.Calls = append(m.Calls, "advance")
	m.AdvancedTo = to
	m.AllowSkip = allowSkip
	return m.Order, m.Skipped, m.Err
}

func (m *MockOrderStore) ListOrdersForCustomer(_ context.Context, _ int64, _ string, limit int) (*store.CursorPage, error) {
	m.Calls = append(m.Calls, "list")
	m.ListLimit = limit
	return &store.CursorPage{Items: []*models.Order{}}, m.Err
}

func (m *MockOrderStore) ListPlacedOrdersForSeller(context.Context, int64) ([]*models.Order, error) {
	m.Calls = append(m.Calls, "list_seller")
	return []*models.Order{}, m.Err
}

func (m *MockOrderStore) DeleteAllOrders(context.Context) (int64, error) {
	m.Calls = append(m.Calls, "purge")
	return m.PurgeCount, m.Err
}

// MockCatalogStore implements CatalogStore.
type MockCatalogStore struct {
	Product         *models.Product
	CreatedProduct  store.CreateProductRequest
	CreatedUserRole models.Role
	AvailabilitySet models.Availability
	VersionSeen     int
}

func (m *MockCatalogStore) CreateUser(_ context.Context, email, name string, role models.Role) (*models.User, error) {
	m.CreatedUserRole = role
	return &models.User{ID: 1, Email: email, Name: name, Role: role}, nil
}

func (m *MockCatalogStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (m *MockCatalogStore) CreateStore(_ context.Context, ownerID int64, name, description string) (*models.Store, error) {
	return &models.Store{ID: 5, OwnerID: ownerID, Name: name, Description: description}, nil
}

func (m *MockCatalogStore) GetStore(_ context.Context, id int64) (*models.Store, error) {
	return &models.Store{ID: id}, nil
}

func (m *MockCatalogStore) CreateProduct(_ context.Context, req store.CreateProductRequest) (*models.Product, error) {
	m.CreatedProduct = req
	return &models.Product{ID: 1, SellerID: req.SellerID, Name: req.Name}, nil
}

func (m *MockCatalogStore) GetProduct(context.Context, int64) (*models.Product, error) {
	if m.Product == nil {
		return nil, database.ErrProductNotFound
	}
	return m.Product, nil
}

func (m *MockCatalogStore) ListProducts(_ context.Context, page, pageSize int) (*store.OffsetPage, error) {
	return &store.OffsetPage{Items: []models.Product{}, Page: page, PageSize: pageSize}, nil
}

func (m *MockCatalogStore) SetAvailability(_ context.Context, _ int64, availability models.Availability, version int) (*models.Product, error) {
	m.AvailabilitySet = availability
	m.VersionSeen = version
	return m.Product, nil
}
