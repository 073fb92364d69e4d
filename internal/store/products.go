package store

import (
	"context"
	"fmt"

	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, store_id, seller_id, name, description, category, price, availability, created_at, updated_at, version`

func scanProduct(row interface{ Scan(...interface{}) error }, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.StoreID,
		&p.SellerID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Price,
		&p.Availability,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
}

type CreateProductRequest struct {
	SellerID     int64
	Name         string
	Description  string
	Category     string
	Price        decimal.Decimal
	Availability models.Availability
}

// CreateProduct adds a product to the seller's store.
func CreateProduct(ctx context.Context, q database.Querier, req CreateProductRequest) (*models.Product, error) {
	s, err := GetStoreByOwner(ctx, q, req.SellerID)
	if err != nil {
		return nil, err
	}

	availability := req.Availability
	if availability == "" {
		availability = models.Available
	}

	product := &models.Product{}

	query := `
		INSERT INTO products (store_id, seller_id, name, description, category, price, availability, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	err = scanProduct(q.QueryRowContext(ctx, query,
		s.ID, req.SellerID, req.Name, req.Description, req.Category, req.Price, availability), product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

// GetProduct is the catalog lookup used by the cart and checkout paths.
func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := scanProduct(q.QueryRowContext(ctx, query, id), product); err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// lockProductShared reads a product under FOR SHARE so its price and availability
// cannot change until the surrounding checkout commits.
func lockProductShared(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR SHARE`

	if err := scanProduct(q.QueryRowContext(ctx, query, id), product); err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product %d: %w", id, err)
	}

	return product, nil
}

// SetAvailability flips a product between Available and Out of Stock using the
// caller's last seen version.
func SetAvailability(ctx context.Context, q database.Querier, productID int64, availability models.Availability, version int) (*models.Product, error) {
	product := &models.Product{}

	query := `
		UPDATE products
		SET availability = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
		RETURNING ` + productColumns

	err := scanProduct(q.QueryRowContext(ctx, query, availability, productID, version), product)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrOptimisticLockFailed
		}
		return nil, fmt.Errorf("set availability: %w", err)
	}

	return product, nil
}

func ListProducts(ctx context.Context, q database.Querier, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, pageSize, pageOffset(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}
