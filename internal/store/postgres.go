package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/go-order-engine/internal/models"
)

// Postgres binds the package functions to one connection pool so services can
// depend on narrow interfaces instead of *sql.DB.
type Postgres struct {
	db         *sql.DB
	pendingTTL time.Duration
}

func NewPostgres(db *sql.DB, pendingTTL time.Duration) *Postgres {
	return &Postgres{db: db, pendingTTL: pendingTTL}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) CreateUser(ctx context.Context, email, name string, role models.Role) (*models.User, error) {
	return CreateUser(ctx, p.db, email, name, role)
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return GetUser(ctx, p.db, id)
}

func (p *Postgres) CreateStore(ctx context.Context, ownerID int64, name, description string) (*models.Store, error) {
	return CreateStore(ctx, p.db, ownerID, name, description)
}

func (p *Postgres) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	return GetStore(ctx, p.db, id)
}

func (p *Postgres) CreateProduct(ctx context.Context, req CreateProductRequest) (*models.Product, error) {
	return CreateProduct(ctx, p.db, req)
}

func (p *Postgres) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return GetProduct(ctx, p.db, id)
}

func (p *Postgres) ListProducts(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListProducts(ctx, p.db, page, pageSize)
}

func (p *Postgres) SetAvailability(ctx context.Context, productID int64, availability models.Availability, version int) (*models.Product, error) {
	return SetAvailability(ctx, p.db, productID, availability, version)
}

func (p *Postgres) GetCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	return GetCart(ctx, p.db, customerID)
}

func (p *Postgres) AddCartItem(ctx context.Context, customerID, productID int64, quantity int) (*models.Cart, error) {
	return AddCartItem(ctx, p.db, customerID, productID, quantity)
}

func (p *Postgres) UpdateCartItem(ctx context.Context, customerID, productID int64, quantity int) (*models.Cart, error) {
	return UpdateCartItem(ctx, p.db, customerID, productID, quantity)
}

func (p *Postgres) RemoveCartItem(ctx context.Context, customerID, productID int64) (*models.Cart, error) {
	return RemoveCartItem(ctx, p.db, customerID, productID)
}

func (p *Postgres) ClearCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	return ClearCart(ctx, p.db, customerID)
}

func (p *Postgres) CheckoutFromCart(ctx context.Context, customerID int64) (*models.Order, error) {
	return CheckoutFromCart(ctx, p.db, customerID, p.pendingTTL)
}

func (p *Postgres) CheckoutFromProduct(ctx context.Context, customerID, productID int64, quantity int) (*models.Order, error) {
	return CheckoutFromProduct(ctx, p.db, customerID, productID, quantity, p.pendingTTL)
}

func (p *Postgres) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return GetOrder(ctx, p.db, id)
}

func (p *Postgres) PlaceOrder(ctx context.Context, id int64, details models.PlacementDetails) (*models.Order, error) {
	return PlaceOrder(ctx, p.db, id, details)
}

func (p *Postgres) CancelOrder(ctx context.Context, id int64, by models.CanceledBy) (*models.Order, error) {
	return CancelOrder(ctx, p.db, id, by)
}

func (p *Postgres) AdvanceOrderStatus(ctx context.Context, id int64, to models.OrderStatus, allowSkip bool) (*models.Order, bool, error) {
	return AdvanceOrderStatus(ctx, p.db, id, to, allowSkip)
}

func (p *Postgres) ListOrdersForCustomer(ctx context.Context, customerID int64, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersForCustomer(ctx, p.db, customerID, cursor, limit)
}

func (p *Postgres) ListPlacedOrdersForSeller(ctx context.Context, sellerID int64) ([]*models.Order, error) {
	return ListPlacedOrdersForSeller(ctx, p.db, sellerID)
}

func (p *Postgres) DeleteAllOrders(ctx context.Context) (int64, error) {
	return DeleteAllOrders(ctx, p.db)
}

func (p *Postgres) DeleteNextExpiredOrder(ctx context.Context) (*models.Order, error) {
	return DeleteNextExpiredOrder(ctx, p.db)
}

func (p *Postgres) FetchPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	return FetchPendingEvents(ctx, p.db, limit)
}

func (p *Postgres) MarkEventSent(ctx context.Context, id int64) error {
	return MarkEventSent(ctx, p.db, id)
}
