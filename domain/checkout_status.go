package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle             CheckoutStatus = "IDLE"
	CheckoutStatusAddressValidated CheckoutStatus = "ADDRESS_VALIDATED"
	CheckoutStatusAmountComputed   CheckoutStatus = "AMOUNT_COMPUTED"
	CheckoutStatusIntentIssued     CheckoutStatus = "INTENT_ISSUED"
	CheckoutStatusConfirming       CheckoutStatus = "CONFIRMING"
	CheckoutStatusActionRequired   CheckoutStatus = "ACTION_REQUIRED"
	CheckoutStatusPartiallySettled CheckoutStatus = "PARTIALLY_SETTLED"
	CheckoutStatusSettled          CheckoutStatus = "SETTLED"
	CheckoutStatusDeclined         CheckoutStatus = "DECLINED"
	CheckoutStatusAborted          CheckoutStatus = "ABORTED"
)

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusIdle:             {CheckoutStatusAddressValidated, CheckoutStatusAborted},
	CheckoutStatusAddressValidated: {CheckoutStatusAmountComputed, CheckoutStatusAborted},
	CheckoutStatusAmountComputed:   {CheckoutStatusIntentIssued, CheckoutStatusSettled, CheckoutStatusAborted},
	CheckoutStatusIntentIssued:     {CheckoutStatusConfirming, CheckoutStatusAborted},
	CheckoutStatusConfirming: {
		CheckoutStatusSettled,
		CheckoutStatusDeclined,
		CheckoutStatusActionRequired,
		CheckoutStatusPartiallySettled,
		CheckoutStatusAborted,
	},
	CheckoutStatusActionRequired:   {CheckoutStatusConfirming, CheckoutStatusAborted},
	CheckoutStatusDeclined:         {CheckoutStatusConfirming, CheckoutStatusAborted},
	CheckoutStatusPartiallySettled: {CheckoutStatusSettled},
}

// CanTransitionTo reports whether the settlement state machine allows from -> to.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusSettled || s == CheckoutStatusAborted
}

// MoneyCaptured reports whether the gateway has taken the customer's money in this state.
func (s CheckoutStatus) MoneyCaptured() bool {
	return s == CheckoutStatusPartiallySettled || s == CheckoutStatusSettled
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
