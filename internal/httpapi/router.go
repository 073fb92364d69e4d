// Package httpapi exposes the order engine over HTTP with chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safar/go-order-engine/internal/identity"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/service"
	"github.com/safar/go-order-engine/internal/store"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type CartAPI interface {
	AddItem(ctx context.Context, p models.Principal, productID int64, quantity int) (*models.Cart, error)
	UpdateItem(ctx context.Context, p models.Principal, productID int64, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, p models.Principal, productID int64) (*models.Cart, error)
	Clear(ctx context.Context, p models.Principal) (*models.Cart, error)
	View(ctx context.Context, p models.Principal) (*models.Cart, error)
	Summary(ctx context.Context, p models.Principal) (models.CartSummary, error)
}

type OrderAPI interface {
	CheckoutCart(ctx context.Context, p models.Principal) (*models.Order, error)
	CheckoutProduct(ctx context.Context, p models.Principal, productID int64, quantity int) (*models.Order, error)
	Place(ctx context.Context, p models.Principal, id int64, details models.PlacementDetails) (*models.Order, error)
	Get(ctx context.Context, p models.Principal, id int64) (*models.Order, error)
	ListForCustomer(ctx context.Context, p models.Principal, cursor string, limit int) (*store.CursorPage, error)
	ListPlacedForSeller(ctx context.Context, p models.Principal) ([]*models.Order, error)
	Cancel(ctx context.Context, p models.Principal, id int64) (*models.Order, error)
	Advance(ctx context.Context, p models.Principal, id int64, status models.OrderStatus) (*models.Order, error)
	Manage(ctx context.Context, p models.Principal, id int64, action string, status models.OrderStatus) (*models.Order, error)
	Purge(ctx context.Context, p models.Principal) (int64, error)
}

type CatalogAPI interface {
	RegisterUser(ctx context.Context, email, name string, role models.Role) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateStore(ctx context.Context, p models.Principal, name, description string) (*models.Store, error)
	GetStore(ctx context.Context, id int64) (*models.Store, error)
	CreateProduct(ctx context.Context, p models.Principal, np service.NewProduct) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	SetAvailability(ctx context.Context, p models.Principal, productID int64, availability models.Availability) (*models.Product, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Carts          CartAPI
	Orders         OrderAPI
	Catalog        CatalogAPI
	Resolver       identity.Resolver
	DB             Pinger
	Log            logrus.FieldLogger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

type handler struct {
	carts   CartAPI
	orders  OrderAPI
	catalog CatalogAPI
	db      Pinger
	log     logrus.FieldLogger
}

func NewRouter(d Deps) http.Handler {
	h := &handler{
		carts:   d.Carts,
		orders:  d.Orders,
		catalog: d.Catalog,
		db:      d.DB,
		log:     d.Log.WithField("component", "http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(instrument(h.log, d.Metrics))
	r.Use(middleware.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}

	r.Get("/health", h.health)
	r.Handle("/metrics", metrics.Handler(d.Gatherer))

	r.Post("/users", h.registerUser)
	r.Get("/users/{id}", h.getUser)
	r.Get("/stores/{id}", h.getStore)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(d.Resolver, h.log))

		r.Post("/stores", h.createStore)
		r.Post("/products", h.createProduct)
		r.Patch("/products/{id}/availability", h.setAvailability)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.viewCart)
			r.Delete("/", h.clearCart)
			r.Get("/summary", h.cartSummary)
			r.Post("/items", h.addCartItem)
			r.Patch("/items/{productID}", h.updateCartItem)
			r.Delete("/items/{productID}", h.removeCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Delete("/", h.purgeOrders)
			r.Post("/checkout-cart", h.checkoutCart)
			r.Post("/checkout-product", h.checkoutProduct)
			r.Get("/seller/placed", h.listPlacedForSeller)
			r.Get("/{id}", h.getOrder)
			r.Post("/{id}/place", h.placeOrder)
			r.Patch("/{id}/cancel", h.cancelOrder)
			r.Patch("/{id}/status", h.advanceOrder)
			r.Patch("/{id}/manage", h.manageOrder)
		})
	})

	return otelhttp.NewHandler(r, "order-engine")
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.log.WithError(err).Warn("health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// principal is set by authenticate on every route that calls it.
func principal(r *http.Request) (models.Principal, error) {
	p, ok := identity.FromContext(r.Context())
	if !ok {
		return models.Principal{}, identity.ErrUnauthenticated
	}
	return p, nil
}
