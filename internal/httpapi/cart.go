package httpapi

import (
	"net/http"

	"github.com/safar/go-order-engine/internal/models"
)

type cartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// POST /cart/items
func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
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

	cart, err := h.carts.AddItem(r.Context(), p, req.ProductID, req.Quantity)
	h.respondCart(w, r, cart, err)
}

// GET /cart
func (h *handler) viewCart(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	cart, err := h.carts.View(r.Context(), p)
	h.respondCart(w, r, cart, err)
}

// GET /cart/summary
func (h *handler) cartSummary(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	summary, err := h.carts.Summary(r.Context(), p)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// PATCH /cart/items/{productID}
func (h *handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	productID, err := idParam(r, "productID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	cart, err := h.carts.UpdateItem(r.Context(), p, productID, req.Quantity)
	h.respondCart(w, r, cart, err)
}

// DELETE /cart/items/{productID}
func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	productID, err := idParam(r, "productID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), p, productID)
	h.respondCart(w, r, cart, err)
}

// DELETE /cart
func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	cart, err := h.carts.Clear(r.Context(), p)
	h.respondCart(w, r, cart, err)
}

func (h *handler) respondCart(w http.ResponseWriter, r *http.Request, cart *models.Cart, err error) {
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}
