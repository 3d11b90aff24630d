package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig wires handlers and cross-cutting concerns into the API router.
type RouterConfig struct {
	ServiceName    string
	Logger         *slog.Logger
	RequestTimeout time.Duration
	AllowedOrigins []string
	PaymentSecret  string

	Tokens  TokenParser
	Limiter *UserRateLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler

	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Auth     *AuthHandler
	Payments *PaymentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		limit = cfg.Limiter.Middleware
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(limit)
			r.Post("/register", cfg.Auth.Register)
			r.Post("/login", cfg.Auth.Login)
			r.Post("/refresh", cfg.Auth.Refresh)
		})

		r.With(RequireSecret(PaymentSecretHeader, cfg.PaymentSecret)).
			Post("/payments/callback", cfg.Payments.Callback)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.Tokens))
			r.Use(limit)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Cart.GetCart)
				r.Delete("/", cfg.Cart.ClearCart)
				r.Post("/items", cfg.Cart.AddItem)
				r.Patch("/items/{item_id}", cfg.Cart.UpdateQuantity)
				r.Delete("/items/{item_id}", cfg.Cart.RemoveItem)
				r.Post("/validate", cfg.Cart.Validate)
				r.Patch("/address", cfg.Cart.SetDeliveryAddress)
				r.Patch("/notes", cfg.Cart.SetNotes)
				r.Get("/summary", cfg.Cart.Summary)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", cfg.Checkout.Create)
				r.Post("/validate", cfg.Checkout.Validate)
				r.Get("/delivery-charges", cfg.Checkout.DeliveryCharges)
				r.Get("/{checkout_id}", cfg.Checkout.Get)
				r.Post("/{checkout_id}/apply-coupon", cfg.Checkout.ApplyCoupon)
				r.Delete("/{checkout_id}/remove-coupon", cfg.Checkout.RemoveCoupon)
				r.Post("/{checkout_id}/confirm", cfg.Checkout.Confirm)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", cfg.Orders.ListOrders)
				r.Route("/{order_id}", func(r chi.Router) {
					r.Get("/", cfg.Orders.GetOrder)
					r.Get("/tracking", cfg.Orders.Tracking)
					r.Get("/invoice", cfg.Orders.Invoice)
					r.Post("/cancel", cfg.Orders.Cancel)
					r.Post("/rate", cfg.Orders.Rate)
					r.Post("/reorder", cfg.Orders.Reorder)

					r.Group(func(r chi.Router) {
						r.Use(RequireRole(domain.RoleAdmin))
						r.Get("/receipt", cfg.Orders.Receipt)
						r.Post("/notes", cfg.Orders.AddNote)
						r.Patch("/status", cfg.Orders.UpdateStatus)
						r.Patch("/assign", cfg.Orders.AssignDriver)
					})
				})
			})
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
