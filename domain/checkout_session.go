package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutSession is the durable record of one checkout attempt.
type CheckoutSession struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Status         CheckoutStatus  `json:"status"`
	PaymentMode    PaymentMode     `json:"payment_mode"`
	Snapshot       CartSnapshot    `json:"cart_snapshot"`
	Address        ShippingAddress `json:"address"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `json:"customer_email"`
	Amount         Money           `json:"amount"`
	IntentID       *string         `json:"intent_id,omitempty"`
	ClientSecret   *string         `json:"-"`
	ChargeID       *string         `json:"charge_id,omitempty"`
	OrderID        *uuid.UUID      `json:"order_id,omitempty"`
	FailureReason  *string         `json:"failure_reason,omitempty"`
	CartCleared    bool            `json:"cart_cleared"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Intent rebuilds the charge intent held by the session, or nil for non-card attempts.
func (s *CheckoutSession) Intent() *ChargeIntent {
	if s.IntentID == nil {
		return nil
	}
	intent := &ChargeIntent{IntentID: *s.IntentID, Amount: s.Amount, Status: IntentStatusCreated}
	if s.ClientSecret != nil {
		intent.ClientSecret = *s.ClientSecret
	}
	switch s.Status {
	case CheckoutStatusSettled, CheckoutStatusPartiallySettled:
		intent.Status = IntentStatusConfirmed
	case CheckoutStatusAborted:
		intent.Status = IntentStatusFailed
	}
	return intent
}
