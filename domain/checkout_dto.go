package domain

import "github.com/google/uuid"

type CheckoutRequest struct {
	UserID         string
	IdempotencyKey string
	Address        ShippingAddress
	PaymentMode    PaymentMode
	Card           CardInput
	CustomerName   string
	CustomerEmail  string
	Snapshot       CartSnapshot
}

type CheckoutResult struct {
	CheckoutID    uuid.UUID      `json:"checkout_id"`
	UserID        string         `json:"-"`
	Status        CheckoutStatus `json:"status"`
	Amount        Money          `json:"amount"`
	OrderID       *uuid.UUID     `json:"order_id,omitempty"`
	IntentID      *string        `json:"payment_intent_id,omitempty"`
	ClientSecret  *string        `json:"client_secret,omitempty"`
	NextActionURL string         `json:"next_action_url,omitempty"`
	Message       string         `json:"message,omitempty"`
}

// ResultFromSession projects a session onto the caller-facing result.
func ResultFromSession(s *CheckoutSession) *CheckoutResult {
	return &CheckoutResult{
		CheckoutID:   s.ID,
		UserID:       s.UserID,
		Status:       s.Status,
		Amount:       s.Amount,
		OrderID:      s.OrderID,
		IntentID:     s.IntentID,
		ClientSecret: s.ClientSecret,
	}
}
