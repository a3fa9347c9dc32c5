package gateway

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/stripe/stripe-go/v74"
)

// Confirm submits the tokenised card against the intent. The card's own billing details are set
// by the client when it tokenises the card; the validated address travels as the intent's
// shipping details. A non-nil error means the outcome is unknown (transport failure or timeout) and must be
// resolved with Lookup before anything is persisted.
func (s *Stripe) Confirm(ctx context.Context, intent *domain.ChargeIntent, card domain.CardInput, billing domain.BillingDetails) (domain.Verdict, error) {
	if intent == nil || intent.IntentID == "" {
		return domain.Verdict{}, ErrMissingIntent
	}
	if card.PaymentMethodID == "" {
		return domain.Verdict{}, ErrMissingPaymentMethod
	}

	pi, err := call(ctx, s, "confirm_intent", func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentConfirmParams{
			PaymentMethod: stripe.String(card.PaymentMethodID),
			Shipping:      shippingParams(billing),
		}
		if billing.Email != "" {
			params.ReceiptEmail = stripe.String(billing.Email)
		}
		if card.ReturnURL != "" {
			params.ReturnURL = stripe.String(card.ReturnURL)
		}
		params.Context = ctx
		return s.api.PaymentIntents.Confirm(intent.IntentID, params)
	})
	if err != nil {
		return verdictFromError(err)
	}
	return verdictFromIntent(pi, false), nil
}

// Lookup reads the authoritative state of an intent.
func (s *Stripe) Lookup(ctx context.Context, intentID string) (domain.Verdict, error) {
	if intentID == "" {
		return domain.Verdict{}, ErrMissingIntent
	}
	pi, err := call(ctx, s, "get_intent", func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		return s.api.PaymentIntents.Get(intentID, params)
	})
	if err != nil {
		classified := classify(err)
		return domain.Verdict{}, classified
	}
	return verdictFromIntent(pi, true), nil
}

// shippingParams returns nil without a recipient name, which the gateway requires for shipping.
func shippingParams(billing domain.BillingDetails) *stripe.ShippingDetailsParams {
	if billing.Name == "" {
		return nil
	}
	return &stripe.ShippingDetailsParams{
		Name: stripe.String(billing.Name),
		Address: &stripe.AddressParams{
			Line1:      stripe.String(billing.Address.Line1),
			City:       stripe.String(billing.Address.City),
			State:      stripe.String(billing.Address.State),
			PostalCode: stripe.String(billing.Address.PostalCode),
			Country:    stripe.String(billing.Address.Country),
		},
	}
}

func verdictFromError(err error) (domain.Verdict, error) {
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		return domain.Declined(declineReason(se)), nil
	}
	classified := classify(err)
	if errors.Is(classified, ErrGatewayUnavailable) {
		return domain.Verdict{}, classified
	}
	return domain.VerdictErr(classified.Error()), nil
}

func verdictFromIntent(pi *stripe.PaymentIntent, lookup bool) domain.Verdict {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		chargeID := pi.ID
		if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
			chargeID = pi.LatestCharge.ID
		}
		return domain.Succeeded(chargeID)
	case stripe.PaymentIntentStatusRequiresAction:
		url := ""
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
			url = pi.NextAction.RedirectToURL.URL
		}
		return domain.RequiresAction(url)
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return domain.Declined(declineReason(pi.LastPaymentError))
		}
		if lookup {
			return domain.Verdict{Outcome: domain.VerdictUnconfirmed}
		}
		return domain.Declined("payment method was not accepted")
	case stripe.PaymentIntentStatusRequiresConfirmation:
		if lookup {
			return domain.Verdict{Outcome: domain.VerdictUnconfirmed}
		}
		return domain.Verdict{Outcome: domain.VerdictPending}
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		return domain.Verdict{Outcome: domain.VerdictPending}
	case stripe.PaymentIntentStatusCanceled:
		return domain.VerdictErr("payment intent was canceled")
	}
	return domain.VerdictErr("unexpected payment intent status " + string(pi.Status))
}

func declineReason(se *stripe.Error) string {
	if se.Msg != "" {
		return se.Msg
	}
	if se.DeclineCode != "" {
		return string(se.DeclineCode)
	}
	return "card was declined"
}
