package pricing

import "errors"

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrInvalidPrice    = errors.New("item unit price must not be negative")
	ErrInvalidDecimal  = errors.New("invalid decimal amount")
)
