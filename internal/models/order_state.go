package models

import (
	"strings"

	"github.com/safar/go-order-engine/internal/apperr"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPlaced    OrderStatus = "Placed"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCanceled  OrderStatus = "Canceled"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "Unpaid"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentPending PaymentStatus = "Pending"
)

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentEWallet PaymentMethod = "e-wallet"
)

type CanceledBy string

const (
	CanceledByCustomer CanceledBy = "Customer"
	CanceledBySeller   CanceledBy = "Seller"
)

var (
	ErrOrderNotPending      = apperr.New(apperr.InvalidState, "order is no longer pending")
	ErrOrderNotCancelable   = apperr.New(apperr.InvalidState, "only orders with status 'Pending' or 'Placed' can be canceled")
	ErrInvalidTransition    = apperr.New(apperr.InvalidState, "status must progress forward")
	ErrStatusSkipNotAllowed = apperr.New(apperr.InvalidState, "status cannot skip a fulfillment step")
	ErrUnknownStatus        = apperr.New(apperr.Validation, "invalid status: must be one of Placed, Shipped, Delivered")
	ErrInvalidPayment       = apperr.New(apperr.Validation, "invalid payment method: choose either 'e-wallet' or 'COD'")
	ErrMissingPlacement     = apperr.New(apperr.Validation, "customer_name, contact_number, delivery_location and payment_method are required")
)

// fulfillmentFlow is the ordered sequence a seller may advance an order along.
var fulfillmentFlow = []OrderStatus{OrderStatusPlaced, OrderStatusShipped, OrderStatusDelivered}

func fulfillmentIndex(s OrderStatus) int {
	for i, step := range fulfillmentFlow {
		if step == s {
			return i
		}
	}
	return -1
}

// InFulfillmentFlow reports whether s is a status a seller may move an order to.
func (s OrderStatus) InFulfillmentFlow() bool {
	return fulfillmentIndex(s) >= 0
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

func (s OrderStatus) Cancelable() bool {
	return s == OrderStatusPending || s == OrderStatusPlaced
}

// CheckAdvance validates a seller-driven move from one fulfillment status to another.
// skipped reports whether an intermediate step was jumped over.
func CheckAdvance(from, to OrderStatus, allowSkip bool) (skipped bool, err error) {
	next := fulfillmentIndex(to)
	if next < 0 {
		return false, ErrUnknownStatus
	}
	current := fulfillmentIndex(from)
	if current < 0 || next <= current {
		return false, ErrInvalidTransition
	}
	skipped = next-current > 1
	if skipped && !allowSkip {
		return true, ErrStatusSkipNotAllowed
	}
	return skipped, nil
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentEWallet
}

// PaymentStatusFor derives the initial payment status from how the customer pays.
func PaymentStatusFor(m PaymentMethod) PaymentStatus {
	if m == PaymentCOD {
		return PaymentUnpaid
	}
	return PaymentPending
}

func (d PlacementDetails) Validate() error {
	if strings.TrimSpace(d.CustomerName) == "" ||
		strings.TrimSpace(d.ContactNumber) == "" ||
		strings.TrimSpace(d.DeliveryLocation) == "" ||
		d.PaymentMethod == "" {
		return ErrMissingPlacement
	}
	if !d.PaymentMethod.Valid() {
		return ErrInvalidPayment
	}
	return nil
}

func CanceledByFor(r Role) CanceledBy {
	if r == RoleSeller {
		return CanceledBySeller
	}
	return CanceledByCustomer
}
