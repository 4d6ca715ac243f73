package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Products      *handler.ProductHandler
	Orders        *handler.OrderHandler
	Carts         *handler.CartHandler
	Checkout      *handler.CheckoutHandler
	Coupons       *handler.CouponHandler
	Notifications *handler.NotificationHandler
}

// Options configures cross-cutting behaviour of the router.
type Options struct {
	APIKey         string
	MetricsEnabled bool
}

// New creates the HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> Logging -> CORS -> metrics -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	if opts.MetricsEnabled {
		r.Use(metrics.Middleware)
	}
	r.Use(middleware.APIKeyAuth(opts.APIKey, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	if opts.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.Products.GetAll)
		r.Get("/products/{id}", h.Products.GetByID)

		r.Post("/cart/items", h.Carts.AddItems)
		r.Get("/cart/{cartId}", h.Carts.Get)
		r.Delete("/cart/{cartId}/items/{productId}", h.Carts.RemoveItem)

		r.Post("/checkout/begin", h.Checkout.Begin)
		r.Post("/checkout/verify", h.Checkout.Verify)

		r.Post("/coupons/check", h.Coupons.Check)
		r.Post("/devices", h.Notifications.RegisterDevice)
		r.Post("/notifications/broadcast", h.Notifications.Broadcast)

		r.Get("/orders/{id}", h.Orders.GetByID)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "NOT_FOUND", "message": "route not found"}`))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error": "METHOD_NOT_ALLOWED", "message": "method not allowed"}`))
	})

	return r
}
