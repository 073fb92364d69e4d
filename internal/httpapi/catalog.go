package httpapi

import (
	"net/http"

	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/service"
)

type registerRequest struct {
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  models.Role `json:"role"`
}

type storeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type availabilityRequest struct {
	Availability models.Availability `json:"availability"`
}

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	user, err := h.catalog.RegisterUser(r.Context(), req.Email, req.Name, req.Role)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	user, err := h.catalog.GetUser(r.Context(), id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *handler) createStore(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req storeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	s, err := h.catalog.CreateStore(r.Context(), p, req.Name, req.Description)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

func (h *handler) getStore(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	s, err := h.catalog.GetStore(r.Context(), id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req service.NewProduct
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), p, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListProducts(r.Context(), queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *handler) setAvailability(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	product, err := h.catalog.SetAvailability(r.Context(), p, id, req.Availability)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}
