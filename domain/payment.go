package domain

import "strings"

type PaymentMode string

const (
	PaymentModeCard PaymentMode = "CARD"
	PaymentModeCOD  PaymentMode = "COD"
)

func ParsePaymentMode(s string) (PaymentMode, bool) {
	switch PaymentMode(strings.ToUpper(strings.TrimSpace(s))) {
	case PaymentModeCard, "":
		return PaymentModeCard, true
	case PaymentModeCOD:
		return PaymentModeCOD, true
	}
	return "", false
}

// CardInput references a card tokenised on the client; raw card numbers never reach the server.
type CardInput struct {
	PaymentMethodID string `json:"payment_method_id"`
	ReturnURL       string `json:"return_url,omitempty"`
}

type BillingAddress struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type BillingDetails struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Address BillingAddress `json:"address"`
}

// BillingFromAddress builds billing details from a normalized shipping address.
func BillingFromAddress(name, email string, addr ShippingAddress) BillingDetails {
	return BillingDetails{
		Name:  name,
		Email: email,
		Address: BillingAddress{
			Line1:      addr.Street,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		},
	}
}

type VerdictOutcome string

const (
	VerdictSucceeded      VerdictOutcome = "SUCCEEDED"
	VerdictDeclined       VerdictOutcome = "DECLINED"
	VerdictRequiresAction VerdictOutcome = "REQUIRES_ACTION"
	VerdictError          VerdictOutcome = "ERROR"
	// VerdictPending: the gateway is still working on a submitted payment.
	VerdictPending VerdictOutcome = "PENDING"
	// VerdictUnconfirmed is only reported by lookups: nothing was submitted against the intent
	// yet, so it may be confirmed.
	VerdictUnconfirmed VerdictOutcome = "UNCONFIRMED"
)

// Verdict is the gateway's answer to a confirmation.
type Verdict struct {
	Outcome       VerdictOutcome
	ChargeID      string
	Reason        string
	NextActionURL string
}

func Succeeded(chargeID string) Verdict {
	return Verdict{Outcome: VerdictSucceeded, ChargeID: chargeID}
}

func Declined(reason string) Verdict {
	return Verdict{Outcome: VerdictDeclined, Reason: reason}
}

func RequiresAction(nextActionURL string) Verdict {
	return Verdict{Outcome: VerdictRequiresAction, NextActionURL: nextActionURL}
}

func VerdictErr(reason string) Verdict {
	return Verdict{Outcome: VerdictError, Reason: reason}
}
