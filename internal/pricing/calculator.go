package pricing

import (
	"fmt"
	"strings"

	"github.com/fjod/go_cart/settlement-service/domain"
)

// Calculator derives the chargeable total of a cart snapshot. It does no I/O.
type Calculator struct {
	shipping domain.Money
	tax      domain.Money
}

func NewCalculator(shipping, tax domain.Money) (*Calculator, error) {
	if shipping.Currency != tax.Currency {
		return nil, fmt.Errorf("%w: shipping %s, tax %s", domain.ErrCurrencyMismatch, shipping.Currency, tax.Currency)
	}
	return &Calculator{shipping: shipping, tax: tax}, nil
}

func (c *Calculator) Currency() string {
	return c.shipping.Currency
}

// Subtotal is the sum of unitPrice*quantity over the snapshot items.
func (c *Calculator) Subtotal(snapshot domain.CartSnapshot) (domain.Money, error) {
	currency := strings.ToUpper(snapshot.Currency)
	if currency != c.shipping.Currency {
		return domain.Money{}, fmt.Errorf("%w: cart %s, fees %s", domain.ErrCurrencyMismatch, currency, c.shipping.Currency)
	}
	if snapshot.IsEmpty() {
		return domain.Money{}, ErrEmptyCart
	}

	subtotal := domain.Money{Currency: currency}
	for _, item := range snapshot.Items {
		if item.Quantity <= 0 {
			return domain.Money{}, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
		if item.UnitPrice < 0 {
			return domain.Money{}, fmt.Errorf("%w: product %s", ErrInvalidPrice, item.ProductID)
		}
		line, err := domain.Money{Amount: item.UnitPrice, Currency: currency}.Multiply(int64(item.Quantity))
		if err != nil {
			return domain.Money{}, err
		}
		if subtotal, err = subtotal.Add(line); err != nil {
			return domain.Money{}, err
		}
	}
	return subtotal, nil
}

// Total = subtotal + shipping + tax, in minor units.
func (c *Calculator) Total(snapshot domain.CartSnapshot) (domain.Money, error) {
	subtotal, err := c.Subtotal(snapshot)
	if err != nil {
		return domain.Money{}, err
	}
	withShipping, err := subtotal.Add(c.shipping)
	if err != nil {
		return domain.Money{}, err
	}
	return withShipping.Add(c.tax)
}
