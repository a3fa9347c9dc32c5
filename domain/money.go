package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrNegativeAmount      = errors.New("money amount must not be negative")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrAmountOverflow      = errors.New("money amount overflows int64 minor units")
)

// minorUnitExponents holds the number of decimal places of the minor unit per ISO 4217 code.
var minorUnitExponents = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"INR": 2,
	"CAD": 2,
	"AUD": 2,
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"JOD": 3,
}

// CurrencyExponent returns the minor-unit exponent for an ISO currency code.
func CurrencyExponent(currency string) (int32, error) {
	exp, ok := minorUnitExponents[strings.ToUpper(currency)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	return exp, nil
}

// Money is an amount in integer minor units of Currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, ErrNegativeAmount
	}
	code := strings.ToUpper(currency)
	if _, err := CurrencyExponent(code); err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: code}, nil
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	if other.Amount > 0 && m.Amount > math.MaxInt64-other.Amount {
		return Money{}, ErrAmountOverflow
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Multiply(qty int64) (Money, error) {
	if qty < 0 {
		return Money{}, ErrNegativeAmount
	}
	if qty > 0 && m.Amount > math.MaxInt64/qty {
		return Money{}, ErrAmountOverflow
	}
	return Money{Amount: m.Amount * qty, Currency: m.Currency}, nil
}

// String formats the amount in major units, e.g. "47.00 USD".
func (m Money) String() string {
	exp, err := CurrencyExponent(m.Currency)
	if err != nil || exp == 0 {
		return fmt.Sprintf("%d %s", m.Amount, m.Currency)
	}
	scale := int64(math.Pow10(int(exp)))
	return fmt.Sprintf("%d.%0*d %s", m.Amount/scale, int(exp), m.Amount%scale, m.Currency)
}
