package service

import (
	"context"
	"strings"

	"github.com/safar/go-order-engine/internal/apperr"
	"github.com/safar/go-order-engine/internal/authz"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/store"
	"github.com/shopspring/decimal"
)

type CatalogStore interface {
	CreateUser(ctx context.Context, email, name string, role models.Role) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateStore(ctx context.Context, ownerID int64, name, description string) (*models.Store, error)
	GetStore(ctx context.Context, id int64) (*models.Store, error)
	CreateProduct(ctx context.Context, req store.CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	SetAvailability(ctx context.Context, productID int64, availability models.Availability, version int) (*models.Product, error)
}

// CatalogService covers users, stores and products: the collaborators the
// order engine reads ownership and prices from.
type CatalogService struct {
	store CatalogStore
}

func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) RegisterUser(ctx context.Context, email, name string, role models.Role) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return nil, apperr.Validationf("a valid email is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validationf("name is required")
	}
	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() {
		return nil, apperr.Validationf("invalid role %q", role)
	}

	return s.store.CreateUser(ctx, email, strings.TrimSpace(name), role)
}

func (s *CatalogService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *CatalogService) CreateStore(ctx context.Context, p models.Principal, name, description string) (*models.Store, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validationf("store name is required")
	}
	if err := authz.Authorize(authz.CreateStore, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	return s.store.CreateStore(ctx, p.ID, strings.TrimSpace(name), description)
}

func (s *CatalogService) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	return s.store.GetStore(ctx, id)
}

type NewProduct struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Category     string              `json:"category"`
	Price        decimal.Decimal     `json:"price"`
	Availability models.Availability `json:"availability"`
}

func (s *CatalogService) CreateProduct(ctx context.Context, p models.Principal, np NewProduct) (*models.Product, error) {
	if strings.TrimSpace(np.Name) == "" || strings.TrimSpace(np.Category) == "" {
		return nil, apperr.Validationf("product name and category are required")
	}
	if np.Price.IsNegative() {
		return nil, apperr.Validationf("price cannot be negative")
	}
	if np.Availability != "" && !np.Availability.Valid() {
		return nil, apperr.Validationf("availability must be %q or %q", models.Available, models.OutOfStock)
	}
	if err := authz.Authorize(authz.CreateProduct, p, authz.ForOwner(p.ID)); err != nil {
		return nil, err
	}

	return s.store.CreateProduct(ctx, store.CreateProductRequest{
		SellerID:     p.ID,
		Name:         strings.TrimSpace(np.Name),
		Description:  np.Description,
		Category:     strings.TrimSpace(np.Category),
		Price:        np.Price,
		Availability: np.Availability,
	})
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.store.ListProducts(ctx, page, pageSize)
}

// SetAvailability lets the owning seller flip a product in or out of stock.
func (s *CatalogService) SetAvailability(ctx context.Context, p models.Principal, productID int64, availability models.Availability) (*models.Product, error) {
	if !availability.Valid() {
		return nil, apperr.Validationf("availability must be %q or %q", models.Available, models.OutOfStock)
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(authz.ManageProduct, p, authz.ForOwner(product.SellerID)); err != nil {
		return nil, err
	}

	return s.store.SetAvailability(ctx, productID, availability, product.Version)
}
