package httpapi

import (
	"net/http"

	"github.com/safar/go-order-engine/internal/models"
)

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type manageRequest struct {
	Action string             `json:"action"`
	Status models.OrderStatus `json:"status"`
}

// POST /orders/checkout-cart
func (h *handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	order, err := h.orders.CheckoutCart(r.Context(), p)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// POST /orders/checkout-product
func (h *handler) checkoutProduct(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	order, err := h.orders.CheckoutProduct(r.Context(), p, req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// POST /orders/{id}/place
func (h *handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.orderTarget(w, r)
	if !ok {
		return
	}

	var details models.PlacementDetails
	if err := decodeJSON(w, r, &details); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	order, err := h.orders.Place(r.Context(), p, id, details)
	h.respondOrder(w, r, order, err)
}

// GET /orders/{id}
func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.orderTarget(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), p, id)
	h.respondOrder(w, r, order, err)
}

// GET /orders?cursor=&limit=
func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	page, err := h.orders.ListForCustomer(r.Context(), p, r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GET /orders/seller/placed
func (h *handler) listPlacedForSeller(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	orders, err := h.orders.ListPlacedForSeller(r.Context(), p)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// PATCH /orders/{id}/cancel
func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.orderTarget(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Cancel(r.Context(), p, id)
	h.respondOrder(w, r, order, err)
}

// PATCH /orders/{id}/status
func (h *handler) advanceOrder(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.orderTarget(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	order, err := h.orders.Advance(r.Context(), p, id, req.Status)
	h.respondOrder(w, r, order, err)
}

// PATCH /orders/{id}/manage
func (h *handler) manageOrder(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.orderTarget(w, r)
	if !ok {
		return
	}

	var req manageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	order, err := h.orders.Manage(r.Context(), p, id, req.Action, req.Status)
	h.respondOrder(w, r, order, err)
}

// DELETE /orders
func (h *handler) purgeOrders(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	deleted, err := h.orders.Purge(r.Context(), p)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *handler) orderTarget(w http.ResponseWriter, r *http.Request) (models.Principal, int64, bool) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return models.Principal{}, 0, false
	}
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, h.log, err)
		return models.Principal{}, 0, false
	}
	return p, id, true
}

func (h *handler) respondOrder(w http.ResponseWriter, r *http.Request, order *models.Order, err error) {
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
