package pricing

import (
	"fmt"
	"math"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/shopspring/decimal"
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToMinor converts a major-unit decimal into minor units of currency, rounding half-up once.
func ToMinor(major decimal.Decimal, currency string) (domain.Money, error) {
	exp, err := domain.CurrencyExponent(currency)
	if err != nil {
		return domain.Money{}, err
	}
	if major.IsNegative() {
		return domain.Money{}, domain.ErrNegativeAmount
	}
	// Round is half away from zero, which is half-up for non-negative values.
	minor := major.Shift(exp).Round(0)
	if minor.GreaterThan(maxMinor) {
		return domain.Money{}, domain.ErrAmountOverflow
	}
	return domain.NewMoney(minor.IntPart(), currency)
}

// ParseMajor parses a major-unit string such as "5.00" into minor units.
func ParseMajor(s, currency string) (domain.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return domain.Money{}, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	return ToMinor(d, currency)
}

// ToMajor renders minor units as a major-unit decimal.
func ToMajor(m domain.Money) (decimal.Decimal, error) {
	exp, err := domain.CurrencyExponent(m.Currency)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(m.Amount, -exp), nil
}

// FormatMajor renders m for display with the currency's full number of decimals, e.g. "47.00".
func FormatMajor(m domain.Money) (string, error) {
	major, err := ToMajor(m)
	if err != nil {
		return "", err
	}
	exp, _ := domain.CurrencyExponent(m.Currency)
	return major.StringFixed(exp), nil
}
