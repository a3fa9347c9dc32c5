package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/settlement-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Checkout      *CheckoutHandler
	Cart          *CartHandler
	Orders        *OrdersHandler
	PaymentIntent *PaymentIntentHandler
	Health        map[string]HealthCheck
}

func NewRouter(h Handlers, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", healthHandler(h.Health))
	r.Handle("/metrics", metrics.Handler())

	if h.PaymentIntent != nil {
		r.Post("/create-payment-intent", h.PaymentIntent.CreatePaymentIntent)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(UserMiddleware)
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.Checkout.InitiateCheckout)
			r.Get("/{checkoutID}", h.Checkout.GetCheckout)
			r.Post("/{checkoutID}/confirm", h.Checkout.ConfirmPayment)
			r.Post("/{checkoutID}/order", h.Checkout.RetryOrder)
		})
		if h.Cart != nil {
			r.Get("/cart", h.Cart.GetCart)
		}
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.ListOrders)
			r.Get("/{orderID}", h.Orders.GetOrder)
		})
	})

	return otelhttp.NewHandler(r, "settlement-http")
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		respondJSON(w, status, result)
	}
}
