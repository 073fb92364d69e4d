package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/store"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := database.Migrate(db, database.MigrateUp); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

type fixture struct {
	customer *models.User
	seller   *models.User
	products []*models.Product
}

func seed(t *testing.T, db *sql.DB, prices ...string) fixture {
	t.Helper()
	ctx := context.Background()

	customer, err := store.CreateUser(ctx, db, "buyer@example.com", "Buyer", models.RoleCustomer)
	if err != nil {
		t.Fatalf("Create customer: %v", err)
	}

	seller, err := store.CreateUser(ctx, db, "seller@example.com", "Seller", models.RoleSeller)
	if err != nil {
		t.Fatalf("Create seller: %v", err)
	}

	if _, err := store.CreateStore(ctx, db, seller.ID, "Corner Shop", ""); err != nil {
		t.Fatalf("Create store: %v", err)
	}

	f := fixture{customer: customer, seller: seller}
	for i, price := range prices {
		product, err := store.CreateProduct(ctx, db, store.CreateProductRequest{
			SellerID: seller.ID,
			Name:     fmt.Sprintf("Product %d", i+1),
			Category: "Test",
			Price:    decimal.RequireFromString(price),
		})
		if err != nil {
			t.Fatalf("Create product %d: %v", i+1, err)
		}
		f.products = append(f.products, product)
	}

	return f
}

func assertCartConsistent(t *testing.T, cart *models.Cart) {
	t.Helper()

	sum := decimal.Zero
	seen := make(map[int64]bool)
	for _, item := range cart.Items {
		if seen[item.ProductID] {
			t.Errorf("Duplicate line for product %d", item.ProductID)
		}
		seen[item.ProductID] = true
		sum = sum.Add(item.Subtotal)
	}

	if !cart.Total.Equal(sum) {
		t.Errorf("Cart total %s does not match line sum %s", cart.Total, sum)
	}
}

func TestCartTotalTracksLines(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "10.00", "2.50")

	cart, err := store.AddCartItem(ctx, db, f.customer.ID, f.products[0].ID, 2)
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}
	assertCartConsistent(t, cart)

	cart, err = store.AddCartItem(ctx, db, f.customer.ID, f.products[0].ID, 1)
	if err != nil {
		t.Fatalf("Add same item: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("Expected one line with quantity 3, got %+v", cart.Items)
	}
	assertCartConsistent(t, cart)

	cart, err = store.AddCartItem(ctx, db, f.customer.ID, f.products[1].ID, 4)
	if err != nil {
		t.Fatalf("Add second product: %v", err)
	}
	assertCartConsistent(t, cart)
	if !cart.Total.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("Expected total 40.00, got %s", cart.Total)
	}

	cart, err = store.UpdateCartItem(ctx, db, f.customer.ID, f.products[1].ID, 1)
	if err != nil {
		t.Fatalf("Update item: %v", err)
	}
	assertCartConsistent(t, cart)

	cart, err = store.RemoveCartItem(ctx, db, f.customer.ID, f.products[0].ID)
	if err != nil {
		t.Fatalf("Remove item: %v", err)
	}
	assertCartConsistent(t, cart)
	if !cart.Total.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("Expected total 2.50, got %s", cart.Total)
	}

	cart, err = store.ClearCart(ctx, db, f.customer.ID)
	if err != nil {
		t.Fatalf("Clear cart: %v", err)
	}
	if len(cart.Items) != 0 || !cart.Total.IsZero() {
		t.Errorf("Expected empty cart, got %d items and total %s", len(cart.Items), cart.Total)
	}
}

func TestConcurrentAddsAccumulate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "1.00")

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AddCartItem(ctx, db, f.customer.ID, f.products[0].ID, 1)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}

	cart, err := store.GetCart(ctx, db, f.customer.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != concurrency {
		t.Errorf("Expected one line with quantity %d, got %+v", concurrency, cart.Items)
	}
	assertCartConsistent(t, cart)
}

func TestAddDuringCheckoutIsNeverLost(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "5.00", "7.00")
	first, late := f.products[0], f.products[1]

	for round := 0; round < 5; round++ {
		if _, err := store.ClearCart(ctx, db, f.customer.ID); err != nil {
			t.Fatalf("Round %d: clear cart: %v", round, err)
		}
		if _, err := store.AddCartItem(ctx, db, f.customer.ID, first.ID, 1); err != nil {
			t.Fatalf("Round %d: add item: %v", round, err)
		}

		var (
			wg       sync.WaitGroup
			order    *models.Order
			checkErr error
			addErr   error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			order, checkErr = store.CheckoutFromCart(ctx, db, f.customer.ID, time.Minute)
		}()
		go func() {
			defer wg.Done()
			_, addErr = store.AddCartItem(ctx, db, f.customer.ID, late.ID, 1)
		}()
		wg.Wait()

		if checkErr != nil {
			t.Fatalf("Round %d: checkout: %v", round, checkErr)
		}
		if addErr != nil {
			t.Fatalf("Round %d: concurrent add: %v", round, addErr)
		}

		inOrder := false
		for _, item := range order.Items {
			if item.ProductID == late.ID {
				inOrder = true
			}
		}

		cart, err := store.GetCart(ctx, db, f.customer.ID)
		if err != nil {
			t.Fatalf("Round %d: get cart: %v", round, err)
		}
		inCart := false
		for _, item := range cart.Items {
			if item.ProductID == late.ID {
				inCart = true
			}
		}
		assertCartConsistent(t, cart)

		if inOrder == inCart {
			t.Errorf("Round %d: late item must be in exactly one of order or cart (order=%v cart=%v)", round, inOrder, inCart)
		}
	}
}

func TestCheckoutOutOfStockLeavesCartUntouched(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "10.00", "20.00")

	for _, p := range f.products {
		if _, err := store.AddCartItem(ctx, db, f.customer.ID, p.ID, 1); err != nil {
			t.Fatalf("Add item: %v", err)
		}
	}

	if _, err := store.SetAvailability(ctx, db, f.products[1].ID, models.OutOfStock, f.products[1].Version); err != nil {
		t.Fatalf("Set availability: %v", err)
	}

	_, err := store.CheckoutFromCart(ctx, db, f.customer.ID, time.Minute)
	if !errors.Is(err, database.ErrOutOfStock) {
		t.Fatalf("Expected out of stock error, got: %v", err)
	}

	cart, err := store.GetCart(ctx, db, f.customer.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Errorf("Cart should still hold 2 lines, got %d", len(cart.Items))
	}

	page, err := store.ListOrdersForCustomer(ctx, db, f.customer.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if orders := page.Items.([]*models.Order); len(orders) != 0 {
		t.Errorf("Expected no orders, got %d", len(orders))
	}
}

func TestCheckoutClearsCartAndSnapshotsPrices(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "10.00", "20.00")

	if _, err := store.AddCartItem(ctx, db, f.customer.ID, f.products[0].ID, 2); err != nil {
		t.Fatalf("Add item: %v", err)
	}
	if _, err := store.AddCartItem(ctx, db, f.customer.ID, f.products[1].ID, 1); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	order, err := store.CheckoutFromCart(ctx, db, f.customer.ID, time.Minute)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if order.Status != models.OrderStatusPending || order.PaymentStatus != models.PaymentUnpaid {
		t.Errorf("Expected Pending/Unpaid, got %s/%s", order.Status, order.PaymentStatus)
	}
	if order.ExpiresAt == nil {
		t.Error("Pending order should carry an expiry")
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("Expected total 40.00, got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 || order.Items[0].SellerID != f.seller.ID {
		t.Errorf("Unexpected order items: %+v", order.Items)
	}

	cart, err := store.GetCart(ctx, db, f.customer.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 0 || !cart.Total.IsZero() {
		t.Errorf("Cart should be empty after checkout, got %d items and total %s", len(cart.Items), cart.Total)
	}

	_, err = store.CheckoutFromCart(ctx, db, f.customer.ID, time.Minute)
	if !errors.Is(err, database.ErrCartEmpty) {
		t.Errorf("Expected empty cart error on second checkout, got: %v", err)
	}

	events, err := store.FetchPendingEvents(ctx, db, 10)
	if err != nil {
		t.Fatalf("Fetch events: %v", err)
	}
	if len(events) != 1 || events[0].Topic != models.EventOrderCreated {
		t.Errorf("Expected one order.created event, got %+v", events)
	}
}

func TestCheckoutFromProductLeavesCartAlone(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "10.00", "25.00")

	if _, err := store.AddCartItem(ctx, db, f.customer.ID, f.products[0].ID, 2); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	order, err := store.CheckoutFromProduct(ctx, db, f.customer.ID, f.products[1].ID, 2, time.Minute)
	if err != nil {
		t.Fatalf("Checkout product: %v", err)
	}

	if order.Status != models.OrderStatusPending || order.PaymentStatus != models.PaymentUnpaid || order.PaymentMethod != models.PaymentCOD {
		t.Errorf("Expected Pending/Unpaid/COD, got %s/%s/%s", order.Status, order.PaymentStatus, order.PaymentMethod)
	}
	if order.ExpiresAt == nil {
		t.Error("Pending order should carry an expiry")
	}
	if len(order.Items) != 1 {
		t.Fatalf("Expected one order item, got %d", len(order.Items))
	}
	if !order.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("Expected price at purchase 25.00, got %s", order.Items[0].PriceAtPurchase)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("Expected total 50.00, got %s", order.TotalAmount)
	}

	cart, err := store.GetCart(ctx, db, f.customer.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != f.products[0].ID || cart.Items[0].Quantity != 2 {
		t.Errorf("Cart should be untouched, got %+v", cart.Items)
	}
	if !cart.Total.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("Cart total should stay 20.00, got %s", cart.Total)
	}

	events, err := store.FetchPendingEvents(ctx, db, 10)
	if err != nil {
		t.Fatalf("Fetch events: %v", err)
	}
	if len(events) != 1 || events[0].Topic != models.EventOrderCreated {
		t.Errorf("Expected one order.created event, got %+v", events)
	}
}

func TestOrderLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "5.00")

	order, err := store.CheckoutFromProduct(ctx, db, f.customer.ID, f.products[0].ID, 3, time.Minute)
	if err != nil {
		t.Fatalf("Checkout product: %v", err)
	}

	_, _, err = store.AdvanceOrderStatus(ctx, db, order.ID, models.OrderStatusShipped, true)
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("Pending order should not advance, got: %v", err)
	}

	placed, err := store.PlaceOrder(ctx, db, order.ID, models.PlacementDetails{
		CustomerName:     "Buyer",
		ContactNumber:    "555-0100",
		DeliveryLocation: "1 Main St",
		PaymentMethod:    models.PaymentEWallet,
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}
	if placed.ExpiresAt != nil || placed.PaymentStatus != models.PaymentPending {
		t.Errorf("Unexpected placed order: %+v", placed)
	}

	sellerOrders, err := store.ListPlacedOrdersForSeller(ctx, db, f.seller.ID)
	if err != nil {
		t.Fatalf("List seller orders: %v", err)
	}
	if len(sellerOrders) != 1 {
		t.Errorf("Expected 1 placed order for seller, got %d", len(sellerOrders))
	}

	shipped, _, err := store.AdvanceOrderStatus(ctx, db, order.ID, models.OrderStatusShipped, false)
	if err != nil {
		t.Fatalf("Advance to shipped: %v", err)
	}
	if shipped.Version <= placed.Version {
		t.Errorf("Version should increase, got %d after %d", shipped.Version, placed.Version)
	}

	_, _, err = store.AdvanceOrderStatus(ctx, db, order.ID, models.OrderStatusPlaced, true)
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("Backward move should fail, got: %v", err)
	}

	_, err = store.CancelOrder(ctx, db, order.ID, models.CanceledByCustomer)
	if !errors.Is(err, models.ErrOrderNotCancelable) {
		t.Errorf("Shipped order should not cancel, got: %v", err)
	}
}

func TestExpirySweepRemovesOnlyStalePendingOrders(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "5.00")

	stale, err := store.CheckoutFromProduct(ctx, db, f.customer.ID, f.products[0].ID, 1, 0)
	if err != nil {
		t.Fatalf("Checkout stale: %v", err)
	}

	fresh, err := store.CheckoutFromProduct(ctx, db, f.customer.ID, f.products[0].ID, 1, time.Hour)
	if err != nil {
		t.Fatalf("Checkout fresh: %v", err)
	}

	placedEarly, err := store.CheckoutFromProduct(ctx, db, f.customer.ID, f.products[0].ID, 1, 0)
	if err != nil {
		t.Fatalf("Checkout placed: %v", err)
	}
	if _, err := store.PlaceOrder(ctx, db, placedEarly.ID, models.PlacementDetails{
		CustomerName: "Buyer", ContactNumber: "555", DeliveryLocation: "Here", PaymentMethod: models.PaymentCOD,
	}); err != nil {
		t.Fatalf("Place order: %v", err)
	}

	deleted, err := store.DeleteNextExpiredOrder(ctx, db)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted.ID != stale.ID {
		t.Errorf("Expected to delete order %d, deleted %d", stale.ID, deleted.ID)
	}

	if _, err := store.DeleteNextExpiredOrder(ctx, db); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected nothing left to sweep, got: %v", err)
	}

	_, err = store.PlaceOrder(ctx, db, stale.ID, models.PlacementDetails{
		CustomerName: "Buyer", ContactNumber: "555", DeliveryLocation: "Here", PaymentMethod: models.PaymentCOD,
	})
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Placing a swept order should be not found, got: %v", err)
	}

	for _, id := range []int64{fresh.ID, placedEarly.ID} {
		if _, err := store.GetOrder(ctx, db, id); err != nil {
			t.Errorf("Order %d should survive the sweep: %v", id, err)
		}
	}
}

func TestOneStorePerOwner(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db)

	_, err := store.CreateStore(ctx, db, f.seller.ID, "Second Shop", "")
	if !errors.Is(err, database.ErrStoreExists) {
		t.Errorf("Expected store exists error, got: %v", err)
	}
}

func TestListOrdersForCustomerCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	f := seed(t, db, "1.00")

	for i := 0; i < 15; i++ {
		if _, err := store.CheckoutFromProduct(ctx, db, f.customer.ID, f.products[0].ID, 1, time.Hour); err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
	}

	page1, err := store.ListOrdersForCustomer(ctx, db, f.customer.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}
	if !page1.HasMore || page1.NextCursor == "" {
		t.Error("Page 1 should have more results and a cursor")
	}

	page2, err := store.ListOrdersForCustomer(ctx, db, f.customer.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}
	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}
	if orders := page2.Items.([]*models.Order); len(orders) != 5 {
		t.Errorf("Expected 5 orders on page 2, got %d", len(orders))
	}

	deleted, err := store.DeleteAllOrders(ctx, db)
	if err != nil {
		t.Fatalf("Delete all orders: %v", err)
	}
	if deleted != 15 {
		t.Errorf("Expected 15 deleted orders, got %d", deleted)
	}
}
