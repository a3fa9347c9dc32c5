package domain

type IntentStatus string

const (
	IntentStatusCreated   IntentStatus = "CREATED"
	IntentStatusConfirmed IntentStatus = "CONFIRMED"
	IntentStatusFailed    IntentStatus = "FAILED"
)

// ChargeIntent is a gateway-side reservation for one checkout attempt. Its status is derived
// from the owning session, see CheckoutSession.Intent.
type ChargeIntent struct {
	IntentID     string       `json:"intent_id"`
	Amount       Money        `json:"amount"`
	Status       IntentStatus `json:"status"`
	ClientSecret string       `json:"-"`
}

// IsFinal reports whether the intent was captured or abandoned. A final intent is never
// submitted to the gateway again.
func (i *ChargeIntent) IsFinal() bool {
	return i.Status == IntentStatusConfirmed || i.Status == IntentStatusFailed
}
