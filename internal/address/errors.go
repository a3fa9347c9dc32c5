package address

import "errors"

var (
	ErrMissingField       = errors.New("address is missing a required field")
	ErrPostalCodeTooShort = errors.New("postal code must be at least 5 digits")
	ErrPostalCodeNotDigit = errors.New("postal code must contain only digits")
	ErrInvalidTable       = errors.New("invalid country table")
)
