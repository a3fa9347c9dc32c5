package repository

import "errors"

var (
	ErrIdempotencyKeyNotFound = errors.New("checkout session with this idempotency key not found")
	ErrSessionNotFound        = errors.New("checkout session not found")
	ErrDuplicateSession       = errors.New("checkout session with this idempotency key already exists")
	ErrOrderNotFound          = errors.New("order not found")
	// ErrDuplicateOrder is returned when the checkout or the payment intent already has an order.
	ErrDuplicateOrder = errors.New("order already exists for this checkout or payment intent")
)

const uniqueViolation = "23505"
