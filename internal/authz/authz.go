// Package authz decides which principals may perform which operations. Every
// role check in the service layer goes through Authorize.
package authz

import (
	"github.com/safar/go-order-engine/internal/apperr"
	"github.com/safar/go-order-engine/internal/models"
)

type Operation string

const (
	MutateCart         Operation = "MutateCart"
	ViewCart           Operation = "ViewCart"
	Checkout           Operation = "Checkout"
	PlaceOrder         Operation = "PlaceOrder"
	ReadOrder          Operation = "ReadOrder"
	CancelOrder        Operation = "CancelOrder"
	AdvanceOrder       Operation = "AdvanceOrder"
	ListCustomerOrders Operation = "ListCustomerOrders"
	ListSellerOrders   Operation = "ListSellerOrders"
	PurgeOrders        Operation = "PurgeOrders"
	CreateStore        Operation = "CreateStore"
	CreateProduct      Operation = "CreateProduct"
	ManageProduct      Operation = "ManageProduct"
)

// Resource carries the ownership facts a rule needs. OwnerID is the cart owner,
// the order's customer or the product's seller depending on the operation.
type Resource struct {
	OwnerID   int64
	SellerIDs []int64
}

func ForOrder(order *models.Order) Resource {
	return Resource{OwnerID: order.CustomerID, SellerIDs: order.SellerIDs()}
}

func ForOwner(id int64) Resource {
	return Resource{OwnerID: id}
}

type rule struct {
	allow   func(p models.Principal, r Resource) bool
	message string
}

func isOwner(p models.Principal, r Resource) bool {
	return p.ID != 0 && p.ID == r.OwnerID
}

func customerOwner(p models.Principal, r Resource) bool {
	return p.Role == models.RoleCustomer && isOwner(p, r)
}

func sellerOfItem(p models.Principal, r Resource) bool {
	if p.Role != models.RoleSeller {
		return false
	}
	for _, id := range r.SellerIDs {
		if id == p.ID {
			return true
		}
	}
	return false
}

func hasRole(role models.Role) func(models.Principal, Resource) bool {
	return func(p models.Principal, _ Resource) bool {
		return p.Role == role
	}
}

var policy = map[Operation]rule{
	MutateCart: {customerOwner, "only customers can modify their cart"},
	ViewCart:   {customerOwner, "only customers can view their cart"},
	Checkout:   {customerOwner, "only customers can check out"},
	PlaceOrder: {customerOwner, "you are not authorized to place this order"},
	ReadOrder: {
		func(p models.Principal, r Resource) bool {
			return isOwner(p, r) || p.Role == models.RoleAdmin || sellerOfItem(p, r)
		},
		"you are not authorized to view this order",
	},
	CancelOrder: {
		func(p models.Principal, r Resource) bool {
			return customerOwner(p, r) || sellerOfItem(p, r)
		},
		"you are not authorized to cancel this order",
	},
	AdvanceOrder: {sellerOfItem, "only the seller of an item in this order can update its status"},
	ListCustomerOrders: {
		func(p models.Principal, _ Resource) bool { return p.ID != 0 },
		"authentication required",
	},
	ListSellerOrders: {hasRole(models.RoleSeller), "only sellers can list placed orders"},
	PurgeOrders:      {hasRole(models.RoleAdmin), "only admins can delete all orders"},
	CreateStore:      {hasRole(models.RoleSeller), "only sellers can create a store"},
	CreateProduct:    {hasRole(models.RoleSeller), "only sellers can create products"},
	ManageProduct: {
		func(p models.Principal, r Resource) bool {
			return p.Role == models.RoleSeller && isOwner(p, r)
		},
		"you do not own this product",
	},
}

// Authorize returns nil when p may perform op on r and a Forbidden error otherwise.
// Operations missing from the policy are denied.
func Authorize(op Operation, p models.Principal, r Resource) error {
	rl, ok := policy[op]
	if !ok {
		return apperr.Forbiddenf("operation %s is not permitted", op)
	}
	if !rl.allow(p, r) {
		return apperr.New(apperr.Forbidden, rl.message)
	}
	return nil
}
