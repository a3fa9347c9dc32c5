package gateway

import "errors"

var (
	// ErrInvalidAmount means the amount was refused before or by the gateway; retrying will not help.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrGatewayUnavailable covers transport failures, timeouts, 5xx/429 responses and an open breaker.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected is a 4xx answer that is neither a card decline nor an amount problem.
	ErrRejected = errors.New("payment gateway rejected the request")

	ErrMissingPaymentMethod = errors.New("payment method is required")
	ErrMissingIntent        = errors.New("charge intent is required")
)
