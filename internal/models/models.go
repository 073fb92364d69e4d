package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "Customer"
	RoleSeller   Role = "Seller"
	RoleAdmin    Role = "Admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type Store struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Availability string

const (
	Available  Availability = "Available"
	OutOfStock Availability = "Out of Stock"
)

func (a Availability) Valid() bool {
	return a == Available || a == OutOfStock
}

type Product struct {
	ID           int64           `json:"id"`
	StoreID      int64           `json:"store_id"`
	SellerID     int64           `json:"seller_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	Availability Availability    `json:"availability"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int             `json:"version"`
}

type Cart struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Items      []CartItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Version    int             `json:"version"`
}

type CartItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartSummary struct {
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Summary derives item count and amount from the cart's current lines.
func (c *Cart) Summary() CartSummary {
	summary := CartSummary{TotalAmount: c.Total}
	for _, item := range c.Items {
		summary.TotalItems += item.Quantity
	}
	return summary
}

type Order struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	OrderNumber      string          `json:"order_number"`
	Status           OrderStatus     `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CustomerName     string          `json:"customer_name,omitempty"`
	ContactNumber    string          `json:"contact_number,omitempty"`
	DeliveryLocation string          `json:"delivery_location,omitempty"`
	CanceledBy       CanceledBy      `json:"canceled_by,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
	Items            []OrderItem     `json:"items,omitempty"`
}

// OrderItem is the purchase-price ledger entry, fixed when the order is created.
type OrderItem struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	SellerID        int64           `json:"seller_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SellerIDs lists the distinct sellers of the order's products in item order.
func (o *Order) SellerIDs() []int64 {
	seen := make(map[int64]bool, len(o.Items))
	var ids []int64
	for _, item := range o.Items {
		if !seen[item.SellerID] {
			seen[item.SellerID] = true
			ids = append(ids, item.SellerID)
		}
	}
	return ids
}

type PlacementDetails struct {
	CustomerName     string        `json:"customer_name"`
	ContactNumber    string        `json:"contact_number"`
	DeliveryLocation string        `json:"delivery_location"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
}

type OutboxEvent struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderPlaced        = "order.placed"
	EventOrderCanceled      = "order.canceled"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderExpired       = "order.expired"
)
