package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/models"
)

const orderColumns = `id, customer_id, order_number, status, payment_status, payment_method, total_amount,
	customer_name, contact_number, delivery_location, canceled_by, expires_at, created_at, updated_at, version`

func scanOrder(row interface{ Scan(...interface{}) error }, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.OrderNumber,
		&order.Status,
		&order.PaymentStatus,
		&order.PaymentMethod,
		&order.TotalAmount,
		&order.CustomerName,
		&order.ContactNumber,
		&order.DeliveryLocation,
		&order.CanceledBy,
		&order.ExpiresAt,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
}

func GetOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	if err := scanOrder(q.QueryRowContext(ctx, query, id), order); err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := attachOrderItems(ctx, q, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	if err := scanOrder(tx.QueryRowContext(ctx, query, id), order); err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if err := attachOrderItems(ctx, tx, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// attachOrderItems loads the items of every order in one round trip.
func attachOrderItems(ctx context.Context, q database.Querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		byID[order.ID] = order
		order.Items = []models.OrderItem{}
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, seller_id, product_name, quantity, price_at_purchase, subtotal, created_at
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.SellerID,
			&item.ProductName,
			&item.Quantity,
			&item.PriceAtPurchase,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

// transitionOrder locks the order, lets check decide whether the move is legal,
// applies update and records eventType, all in one transaction.
func transitionOrder(
	ctx context.Context,
	db *sql.DB,
	id int64,
	eventType string,
	check func(order *models.Order) error,
	update func(tx *sql.Tx, order *models.Order) error,
) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		order, err = lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := check(order); err != nil {
			return err
		}

		if err := update(tx, order); err != nil {
			return err
		}

		return enqueueOrderEvent(ctx, tx, eventType, order)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// rescanOrder runs an UPDATE … RETURNING orderColumns and refreshes order in place,
// keeping the already loaded items.
func rescanOrder(ctx context.Context, tx *sql.Tx, order *models.Order, query string, args ...interface{}) error {
	items := order.Items
	if err := scanOrder(tx.QueryRowContext(ctx, query, args...), order); err != nil {
		return fmt.Errorf("update order %d: %w", order.ID, err)
	}
	order.Items = items
	return nil
}

// PlaceOrder finalizes a Pending order with the customer's delivery and payment
// details. Placing clears the expiry marker so the sweeper no longer sees it.
func PlaceOrder(ctx context.Context, db *sql.DB, id int64, details models.PlacementDetails) (*models.Order, error) {
	return transitionOrder(ctx, db, id, models.EventOrderPlaced,
		func(order *models.Order) error {
			if order.Status != models.OrderStatusPending {
				return models.ErrOrderNotPending
			}
			return nil
		},
		func(tx *sql.Tx, order *models.Order) error {
			return rescanOrder(ctx, tx, order,
				`UPDATE orders
				 SET status = $1, payment_method = $2, payment_status = $3,
				     customer_name = $4, contact_number = $5, delivery_location = $6,
				     expires_at = NULL, version = version + 1, updated_at = NOW()
				 WHERE id = $7
				 RETURNING `+orderColumns,
				models.OrderStatusPlaced,
				details.PaymentMethod,
				models.PaymentStatusFor(details.PaymentMethod),
				details.CustomerName,
				details.ContactNumber,
				details.DeliveryLocation,
				order.ID)
		})
}

func CancelOrder(ctx context.Context, db *sql.DB, id int64, by models.CanceledBy) (*models.Order, error) {
	return transitionOrder(ctx, db, id, models.EventOrderCanceled,
		func(order *models.Order) error {
			if !order.Status.Cancelable() {
				return models.ErrOrderNotCancelable
			}
			return nil
		},
		func(tx *sql.Tx, order *models.Order) error {
			return rescanOrder(ctx, tx, order,
				`UPDATE orders
				 SET status = $1, canceled_by = $2, expires_at = NULL,
				     version = version + 1, updated_at = NOW()
				 WHERE id = $3
				 RETURNING `+orderColumns,
				models.OrderStatusCanceled, by, order.ID)
		})
}

// AdvanceOrderStatus moves an order forward along the fulfillment flow. skipped
// reports whether an intermediate step was jumped over.
func AdvanceOrderStatus(ctx context.Context, db *sql.DB, id int64, to models.OrderStatus, allowSkip bool) (*models.Order, bool, error) {
	var skipped bool

	order, err := transitionOrder(ctx, db, id, models.EventOrderStatusChanged,
		func(order *models.Order) error {
			var err error
			skipped, err = models.CheckAdvance(order.Status, to, allowSkip)
			return err
		},
		func(tx *sql.Tx, order *models.Order) error {
			return rescanOrder(ctx, tx, order,
				`UPDATE orders
				 SET status = $1, version = version + 1, updated_at = NOW()
				 WHERE id = $2
				 RETURNING `+orderColumns,
				to, order.ID)
		})
	if err != nil {
		return nil, false, err
	}

	return order, skipped, nil
}

func scanOrders(rows *sql.Rows) ([]*models.Order, error) {
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		order := &models.Order{}
		if err := scanOrder(rows, order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// ListOrdersForCustomer pages through a customer's orders newest first using a
// (created_at, id) keyset cursor.
func ListOrdersForCustomer(ctx context.Context, q database.Querier, customerID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := q.QueryContext(ctx, query, customerID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListPlacedOrdersForSeller returns Placed orders containing at least one of the
// seller's products, newest first.
func ListPlacedOrdersForSeller(ctx context.Context, q database.Querier, sellerID int64) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.status = $1
		  AND EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.seller_id = $2)
		ORDER BY o.created_at DESC, o.id DESC`

	rows, err := q.QueryContext(ctx, query, models.OrderStatusPlaced, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller orders: %w", err)
	}

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	if err := attachOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// DeleteAllOrders removes every order; items go with them through the cascade.
func DeleteAllOrders(ctx context.Context, db *sql.DB) (int64, error) {
	var deleted int64

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM orders`)
		if err != nil {
			return fmt.Errorf("delete orders: %w", err)
		}

		deleted, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// DeleteNextExpiredOrder claims the oldest Pending order past its expiry, deletes it
// and records order.expired. Rows locked by a concurrent PlaceOrder are skipped.
// It returns ErrOrderNotFound when nothing is due.
func DeleteNextExpiredOrder(ctx context.Context, db *sql.DB) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order = &models.Order{}

		query := `
			SELECT ` + orderColumns + `
			FROM orders
			WHERE status = $1
			  AND expires_at <= NOW()
			ORDER BY expires_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED`

		if err := scanOrder(tx.QueryRowContext(ctx, query, models.OrderStatusPending), order); err != nil {
			if database.IsNoRows(err) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("get next expired order: %w", err)
		}

		if err := attachOrderItems(ctx, tx, []*models.Order{order}); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND status = $2`, order.ID, models.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("delete expired order %d: %w", order.ID, err)
		}

		return enqueueOrderEvent(ctx, tx, models.EventOrderExpired, order)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
