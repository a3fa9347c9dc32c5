package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/settlement-service/internal/metrics"
	"github.com/fjod/go_cart/settlement-service/pkg/circuitbreaker"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

type Config struct {
	SecretKey string
	Timeout   time.Duration
	// BackendURL overrides the Stripe API base URL.
	BackendURL        string
	MaxNetworkRetries int64
}

// Stripe issues and confirms payment intents. It implements both the issuer and the confirmer
// roles; callers depend on the narrower interfaces.
type Stripe struct {
	api     *client.API
	timeout time.Duration
	breaker *circuitbreaker.Breaker[any]
}

func NewStripe(cfg Config) *Stripe {
	var backends *stripe.Backends
	if cfg.BackendURL != "" {
		b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.BackendURL),
			MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		backends = &stripe.Backends{API: b, Connect: b, Uploads: b}
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Stripe{
		api:     api,
		timeout: timeout,
		breaker: circuitbreaker.New[any](circuitbreaker.DefaultSettings("stripe"), func(err error) bool {
			return err == nil || !errors.Is(classify(err), ErrGatewayUnavailable)
		}),
	}
}

// call runs fn under the breaker with a per-call deadline and records the outcome.
func call[T any](ctx context.Context, s *Stripe, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.breaker.Execute(func() (any, error) {
		return fn(callCtx)
	})
	out, _ := res.(T)
	if err != nil {
		classified := classify(err)
		result := "rejected"
		if errors.Is(classified, ErrGatewayUnavailable) {
			result = "unavailable"
		}
		metrics.GatewayCalls.WithLabelValues(op, result).Inc()
		logger.FromContext(ctx).Warn("gateway call failed", "op", op, "error", err)
		return out, err
	}
	metrics.GatewayCalls.WithLabelValues(op, "ok").Inc()
	return out, nil
}

// classify maps a raw Stripe or transport error onto the gateway sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, circuitbreaker.ErrOpen) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	switch {
	case se.HTTPStatusCode >= 500 || se.HTTPStatusCode == 429 || se.Type == stripe.ErrorTypeAPI:
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, se.Msg)
	case se.Type == stripe.ErrorTypeInvalidRequest && se.Param == "amount":
		return fmt.Errorf("%w: %s", ErrInvalidAmount, se.Msg)
	}
	return fmt.Errorf("%w: %s", ErrRejected, se.Msg)
}
