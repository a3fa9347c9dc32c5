package cart

import "errors"

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrCacheMiss    = errors.New("cache miss")
)
