package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPending   OrderStatus = "PENDING_PAYMENT" // cash on delivery
)

type Order struct {
	ID              uuid.UUID          `json:"id"`
	CheckoutID      uuid.UUID          `json:"checkout_id"`
	UserID          string             `json:"user_id"`
	Items           []CartSnapshotItem `json:"items"`
	Address         ShippingAddress    `json:"address"`
	PaymentMode     PaymentMode        `json:"payment_mode"`
	Total           Money              `json:"total"`
	PaymentIntentID *string            `json:"payment_intent_id,omitempty"`
	ChargeID        *string            `json:"charge_id,omitempty"`
	Status          OrderStatus        `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
}
