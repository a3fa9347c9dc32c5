package service

import (
	"context"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/google/uuid"
)

type CheckoutService interface {
	Checkout(ctx context.Context, request *d.CheckoutRequest) (*d.CheckoutResult, error)
	ConfirmPayment(ctx context.Context, checkoutID uuid.UUID, card d.CardInput) (*d.CheckoutResult, error)
	RetryOrderCreation(ctx context.Context, checkoutID uuid.UUID) (*d.CheckoutResult, error)
	GetCheckout(ctx context.Context, checkoutID uuid.UUID) (*d.CheckoutResult, error)
}

type SessionStore interface {
	CreateCheckoutSession(ctx context.Context, s *d.CheckoutSession) error
	UpdateCheckoutSession(ctx context.Context, s *d.CheckoutSession) error
	GetCheckoutSession(ctx context.Context, id uuid.UUID) (*d.CheckoutSession, error)
	GetCheckoutSessionByIdempotencyKey(ctx context.Context, userID, key string) (*d.CheckoutSession, error)
	GetSessionsByStatus(ctx context.Context, status d.CheckoutStatus, olderThan time.Time, limit int) ([]*d.CheckoutSession, error)
	GetUnclearedSettledSessions(ctx context.Context, limit int) ([]*d.CheckoutSession, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *d.Order) (uuid.UUID, error)
	GetOrderByIntentID(ctx context.Context, intentID string) (*d.Order, error)
	GetOrderByCheckoutID(ctx context.Context, checkoutID uuid.UUID) (*d.Order, error)
}

type CartStore interface {
	ClearCart(ctx context.Context, userID string) error
	// ClearCartIfUnchanged leaves a cart alone if the user modified it after since.
	ClearCartIfUnchanged(ctx context.Context, userID string, since time.Time) error
}

type AddressNormalizer interface {
	Normalize(ctx context.Context, addr d.ShippingAddress) (d.ShippingAddress, error)
}

type AmountCalculator interface {
	Total(snapshot d.CartSnapshot) (d.Money, error)
}

type IntentIssuer interface {
	CreateIntent(ctx context.Context, amount d.Money, idempotencyKey string) (*d.ChargeIntent, error)
}

type PaymentConfirmer interface {
	Confirm(ctx context.Context, intent *d.ChargeIntent, card d.CardInput, billing d.BillingDetails) (d.Verdict, error)
	Lookup(ctx context.Context, intentID string) (d.Verdict, error)
}

type AttemptLocker interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

type Dependencies struct {
	Sessions   SessionStore
	Orders     OrderStore
	Carts      CartStore
	Addresses  AddressNormalizer
	Calculator AmountCalculator
	Issuer     IntentIssuer
	Confirmer  PaymentConfirmer
	// Locker is optional; without it concurrent attempts rely on idempotency keys alone.
	Locker AttemptLocker
	// StoreTimeout bounds order and cart writes after a payment was captured.
	StoreTimeout time.Duration
}

// SettlementService drives a checkout attempt from address validation to a settled order.
type SettlementService struct {
	sessions     SessionStore
	orders       OrderStore
	carts        CartStore
	addresses    AddressNormalizer
	calculator   AmountCalculator
	issuer       IntentIssuer
	confirmer    PaymentConfirmer
	locker       AttemptLocker
	storeTimeout time.Duration
	now          func() time.Time
}

func NewSettlementService(deps Dependencies) *SettlementService {
	timeout := deps.StoreTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SettlementService{
		sessions:     deps.Sessions,
		orders:       deps.Orders,
		carts:        deps.Carts,
		addresses:    deps.Addresses,
		calculator:   deps.Calculator,
		issuer:       deps.Issuer,
		confirmer:    deps.Confirmer,
		locker:       deps.Locker,
		storeTimeout: timeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}
