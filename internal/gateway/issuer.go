package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/stripe/stripe-go/v74"
)

// CreateIntent reserves amount on the gateway. Amounts must already be in minor units.
func (s *Stripe) CreateIntent(ctx context.Context, amount domain.Money, idempotencyKey string) (*domain.ChargeIntent, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	pi, err := call(ctx, s, "create_intent", func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{
			Amount:             stripe.Int64(amount.Amount),
			Currency:           stripe.String(strings.ToLower(amount.Currency)),
			PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		}
		params.Context = ctx
		if idempotencyKey != "" {
			params.SetIdempotencyKey(idempotencyKey)
		}
		return s.api.PaymentIntents.New(params)
	})
	if err != nil {
		return nil, classify(err)
	}

	return &domain.ChargeIntent{
		IntentID:     pi.ID,
		Amount:       amount,
		Status:       domain.IntentStatusCreated,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func validateAmount(amount domain.Money) error {
	if amount.Amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount.Amount)
	}
	exp, err := domain.CurrencyExponent(amount.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	// Stripe only accepts three-decimal amounts rounded to the nearest ten.
	if exp == 3 && amount.Amount%10 != 0 {
		return fmt.Errorf("%w: %s amounts must be a multiple of 10 minor units", ErrInvalidAmount, amount.Currency)
	}
	return nil
}
