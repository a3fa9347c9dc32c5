package http

import (
	"context"

	d "github.com/fjod/go_cart/settlement-service/domain"
	r "github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/google/uuid"
)

type MockCheckoutService struct {
	Result       *d.CheckoutResult
	Err          error
	Sessions     map[uuid.UUID]*d.CheckoutResult
	LastRequest  *d.CheckoutRequest
	LastCard     d.CardInput
	ConfirmCalls int
	RetryCalls   int
}

func (m *MockCheckoutService) Checkout(_ context.Context, request *d.CheckoutRequest) (*d.CheckoutResult, error) {
	m.LastRequest = request
	return m.Result, m.Err
}

func (m *MockCheckoutService) ConfirmPayment(_ context.Context, _ uuid.UUID, card d.CardInput) (*d.CheckoutResult, error) {
	m.ConfirmCalls++
	m.LastCard = card
	return m.Result, m.Err
}

func (m *MockCheckoutService) RetryOrderCreation(context.Context, uuid.UUID) (*d.CheckoutResult, error) {
	m.RetryCalls++
	return m.Result, m.Err
}

func (m *MockCheckoutService) GetCheckout(_ context.Context, id uuid.UUID) (*d.CheckoutResult, error) {
	res, ok := m.Sessions[id]
	if !ok {
		return nil, checkoutNotFound()
	}
	cp := *res
	return &cp, nil
}

type MockCarts struct {
	Snap d.CartSnapshot
	Err  error
}

func (m *MockCarts) Snapshot(context.Context, string) (d.CartSnapshot, error) {
	return m.Snap, m.Err
}

func (m *MockCarts) Preview(context.Context, string) (d.CartSnapshot, error) {
	return m.Snap, m.Err
}

type MockIssuer struct {
	Intent *d.ChargeIntent
	Err    error
	Amount d.Money
	Key    string
	Calls  int
}

func (m *MockIssuer) CreateIntent(_ context.Context, amount d.Money, key string) (*d.ChargeIntent, error) {
	m.Calls++
	m.Amount = amount
	m.Key = key
	return m.Intent, m.Err
}

type MockOrders struct {
	Orders map[uuid.UUID]*d.Order
	Err    error
}

func (m *MockOrders) GetOrderByID(_ context.Context, id uuid.UUID) (*d.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	o, ok := m.Orders[id]
	if !ok {
		return nil, r.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrders) ListOrdersByUserID(_ context.Context, userID string) ([]*d.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*d.Order
	for _, o := range m.Orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}
