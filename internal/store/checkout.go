package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/shopspring/decimal"
)

func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%d-%s", time.Now().Unix(), suffix)
}

// snapshotLine prices one line at the product's current catalog price. The product
// must already be locked FOR SHARE by the caller.
func snapshotLine(product *models.Product, quantity int) (models.OrderItem, error) {
	if product.Availability == models.OutOfStock {
		return models.OrderItem{}, fmt.Errorf("%w: %s", database.ErrOutOfStock, product.Name)
	}

	return models.OrderItem{
		ProductID:       product.ID,
		SellerID:        product.SellerID,
		ProductName:     product.Name,
		Quantity:        quantity,
		PriceAtPurchase: product.Price,
		Subtotal:        lineSubtotal(product.Price, quantity),
	}, nil
}

// insertOrder writes a Pending COD order with its item snapshots and the
// order.created event. The order expires ttl after creation unless placed.
func insertOrder(ctx context.Context, tx *sql.Tx, customerID int64, lines []models.OrderItem, ttl time.Duration) (*models.Order, error) {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}

	order := &models.Order{}

	query := `
		INSERT INTO orders (customer_id, order_number, status, payment_status, payment_method,
		                    total_amount, expires_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, NOW() + make_interval(secs => $7), NOW(), NOW(), 1)
		RETURNING ` + orderColumns

	err := scanOrder(tx.QueryRowContext(ctx, query,
		customerID,
		generateOrderNumber(),
		models.OrderStatusPending,
		models.PaymentUnpaid,
		models.PaymentCOD,
		total,
		ttl.Seconds(),
	), order)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	order.Items = make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		line.OrderID = order.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, seller_id, product_name, quantity, price_at_purchase, subtotal, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			 RETURNING id, created_at`,
			order.ID, line.ProductID, line.SellerID, line.ProductName, line.Quantity, line.PriceAtPurchase, line.Subtotal,
		).Scan(&line.ID, &line.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		order.Items = append(order.Items, line)
	}

	if err := enqueueOrderEvent(ctx, tx, models.EventOrderCreated, order); err != nil {
		return nil, err
	}

	return order, nil
}

// CheckoutFromCart turns the customer's cart into a Pending order and empties the
// cart. Any unavailable product aborts the whole checkout with nothing written.
func CheckoutFromCart(ctx context.Context, db *sql.DB, customerID int64, pendingTTL time.Duration) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, customerID)
		if err != nil {
			if errors.Is(err, database.ErrCartNotFound) {
				return database.ErrCartEmpty
			}
			return err
		}

		items, err := loadCartItems(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return database.ErrCartEmpty
		}

		lines := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			product, err := lockProductShared(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}

			line, err := snapshotLine(product, item.Quantity)
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}

		order, err = insertOrder(ctx, tx, customerID, lines, pendingTTL)
		if err != nil {
			return err
		}

		_, err = emptyCart(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// CheckoutFromProduct creates a single-item Pending order without touching the cart.
func CheckoutFromProduct(ctx context.Context, db *sql.DB, customerID, productID int64, quantity int, pendingTTL time.Duration) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		product, err := lockProductShared(ctx, tx, productID)
		if err != nil {
			return err
		}

		line, err := snapshotLine(product, quantity)
		if err != nil {
			return err
		}

		order, err = insertOrder(ctx, tx, customerID, []models.OrderItem{line}, pendingTTL)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
