package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/shopspring/decimal"
)

// Cart mutations hold the cart row lock for the whole transaction, which
// serializes every read-modify-write on one customer's cart while leaving
// other customers' carts independent.

const cartColumns = `id, customer_id, total, created_at, updated_at, version`

func scanCart(row interface{ Scan(...interface{}) error }, cart *models.Cart) error {
	return row.Scan(
		&cart.ID,
		&cart.CustomerID,
		&cart.Total,
		&cart.CreatedAt,
		&cart.UpdatedAt,
		&cart.Version,
	)
}

func GetCart(ctx context.Context, q database.Querier, customerID int64) (*models.Cart, error) {
	cart := &models.Cart{}

	query := `SELECT ` + cartColumns + ` FROM carts WHERE customer_id = $1`

	if err := scanCart(q.QueryRowContext(ctx, query, customerID), cart); err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	items, err := loadCartItems(ctx, q, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

func lockCart(ctx context.Context, tx *sql.Tx, customerID int64) (*models.Cart, error) {
	cart := &models.Cart{}

	query := `SELECT ` + cartColumns + ` FROM carts WHERE customer_id = $1 FOR UPDATE`

	if err := scanCart(tx.QueryRowContext(ctx, query, customerID), cart); err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}

	return cart, nil
}

// ensureCart creates the customer's cart on first use and returns it locked.
func ensureCart(ctx context.Context, tx *sql.Tx, customerID int64) (*models.Cart, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO carts (customer_id, total, created_at, updated_at, version)
		 VALUES ($1, 0, NOW(), NOW(), 1)
		 ON CONFLICT (customer_id) DO NOTHING`,
		customerID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return lockCart(ctx, tx, customerID)
}

func loadCartItems(ctx context.Context, q database.Querier, cartID int64) ([]models.CartItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT product_id, quantity, subtotal
		 FROM cart_items
		 WHERE cart_id = $1
		 ORDER BY id`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// refreshCartTotal recomputes the cached total from the lines and bumps the version.
func refreshCartTotal(ctx context.Context, tx *sql.Tx, cart *models.Cart) error {
	err := tx.QueryRowContext(ctx,
		`UPDATE carts
		 SET total = (SELECT COALESCE(SUM(subtotal), 0) FROM cart_items WHERE cart_id = $1),
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING total, version, updated_at`,
		cart.ID).Scan(&cart.Total, &cart.Version, &cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("refresh cart total: %w", err)
	}

	items, err := loadCartItems(ctx, tx, cart.ID)
	if err != nil {
		return err
	}
	cart.Items = items

	return nil
}

func lineSubtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// AddCartItem adds quantity of a product at its current catalog price. Repeated
// adds of the same product accumulate on one line.
func AddCartItem(ctx context.Context, db *sql.DB, customerID, productID int64, quantity int) (*models.Cart, error) {
	var cart *models.Cart

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		product, err := GetProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		cart, err = ensureCart(ctx, tx, customerID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, subtotal)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (cart_id, product_id)
			 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
			               subtotal = cart_items.subtotal + EXCLUDED.subtotal`,
			cart.ID, productID, quantity, lineSubtotal(product.Price, quantity))
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}

		return refreshCartTotal(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// UpdateCartItem overwrites a line's quantity and reprices it at the current catalog price.
func UpdateCartItem(ctx context.Context, db *sql.DB, customerID, productID int64, quantity int) (*models.Cart, error) {
	var cart *models.Cart

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		cart, err = lockCart(ctx, tx, customerID)
		if err != nil {
			return err
		}

		var current int
		err = tx.QueryRowContext(ctx,
			`SELECT quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
			cart.ID, productID).Scan(&current)
		if err != nil {
			if database.IsNoRows(err) {
				return database.ErrCartItemNotFound
			}
			return fmt.Errorf("get cart item: %w", err)
		}

		product, err := GetProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = $1, subtotal = $2 WHERE cart_id = $3 AND product_id = $4`,
			quantity, lineSubtotal(product.Price, quantity), cart.ID, productID)
		if err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}

		return refreshCartTotal(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

func RemoveCartItem(ctx context.Context, db *sql.DB, customerID, productID int64) (*models.Cart, error) {
	var cart *models.Cart

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		cart, err = lockCart(ctx, tx, customerID)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
			cart.ID, productID)
		if err != nil {
			return fmt.Errorf("remove cart item: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrCartItemNotFound
		}

		return refreshCartTotal(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// ClearCart empties the cart. Clearing an already empty cart changes nothing.
func ClearCart(ctx context.Context, db *sql.DB, customerID int64) (*models.Cart, error) {
	var cart *models.Cart

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		cart, err = lockCart(ctx, tx, customerID)
		if err != nil {
			return err
		}

		cleared, err := emptyCart(ctx, tx, cart)
		if err != nil {
			return err
		}
		if !cleared {
			cart.Items = []models.CartItem{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// emptyCart deletes every line of a locked cart and resets its total. It reports
// false when there was nothing to delete.
func emptyCart(ctx context.Context, tx *sql.Tx, cart *models.Cart) (bool, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID)
	if err != nil {
		return false, fmt.Errorf("clear cart items: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := refreshCartTotal(ctx, tx, cart); err != nil {
		return false, err
	}
	return true, nil
}
