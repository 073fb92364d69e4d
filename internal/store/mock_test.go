package store

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	return db, mock
}

func cartRows(id, customerID int64, total string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "customer_id", "total", "created_at", "updated_at", "version"}).
		AddRow(id, customerID, total, fixedNow, fixedNow, 1)
}

func cartItemRows(items ...[3]driver.Value) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"product_id", "quantity", "subtotal"})
	for _, item := range items {
		rows.AddRow(item[0], item[1], item[2])
	}
	return rows
}

func productRows(id, sellerID int64, name, price string, availability models.Availability) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "store_id", "seller_id", "name", "description", "category", "price", "availability",
		"created_at", "updated_at", "version",
	}).AddRow(id, 1, sellerID, name, "", "gadgets", price, string(availability), fixedNow, fixedNow, 1)
}

var orderColumnNames = []string{
	"id", "customer_id", "order_number", "status", "payment_status", "payment_method", "total_amount",
	"customer_name", "contact_number", "delivery_location", "canceled_by", "expires_at",
	"created_at", "updated_at", "version",
}

func orderRows(id, customerID int64, status models.OrderStatus, total string) *sqlmock.Rows {
	var expiresAt driver.Value
	if status == models.OrderStatusPending {
		expiresAt = fixedNow.Add(time.Minute)
	}
	return sqlmock.NewRows(orderColumnNames).AddRow(
		id, customerID, "ORD-1-ABCDEF12", string(status), string(models.PaymentUnpaid), string(models.PaymentCOD), total,
		"", "", "", "", expiresAt, fixedNow, fixedNow, 1,
	)
}

func orderItemRows(orderID int64, items ...models.OrderItem) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "order_id", "product_id", "seller_id", "product_name", "quantity", "price_at_purchase", "subtotal", "created_at",
	})
	for i, item := range items {
		rows.AddRow(int64(i+1), orderID, item.ProductID, item.SellerID, item.ProductName, item.Quantity,
			item.PriceAtPurchase.String(), item.Subtotal.String(), fixedNow)
	}
	return rows
}

func fkViolation() error {
	return &pq.Error{Code: "23503", Message: "insert or update violates foreign key constraint"}
}
