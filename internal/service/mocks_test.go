package service

import (
	"context"
	"sync"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/lock"
	r "github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/google/uuid"
)

type sessionKey struct{ user, key string }

// MockSessions is an in-memory SessionStore that records every status it was asked to persist.
type MockSessions struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]d.CheckoutSession
	byKey     map[sessionKey]uuid.UUID
	History   []d.CheckoutStatus
	CreateErr error
	UpdateErr error
	GetErr    error
}

func NewMockSessions() *MockSessions {
	return &MockSessions{byID: map[uuid.UUID]d.CheckoutSession{}, byKey: map[sessionKey]uuid.UUID{}}
}

func (m *MockSessions) CreateCheckoutSession(_ context.Context, s *d.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.byKey[sessionKey{s.UserID, s.IdempotencyKey}]; ok {
		return r.ErrDuplicateSession
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.byID[s.ID] = *s
	m.byKey[sessionKey{s.UserID, s.IdempotencyKey}] = s.ID
	m.History = append(m.History, s.Status)
	return nil
}

func (m *MockSessions) UpdateCheckoutSession(_ context.Context, s *d.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.byID[s.ID]; !ok {
		return r.ErrSessionNotFound
	}
	s.UpdatedAt = time.Now()
	m.byID[s.ID] = *s
	m.History = append(m.History, s.Status)
	return nil
}

func (m *MockSessions) GetCheckoutSession(_ context.Context, id uuid.UUID) (*d.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.byID[id]
	if !ok {
		return nil, r.ErrSessionNotFound
	}
	return &s, nil
}

func (m *MockSessions) GetCheckoutSessionByIdempotencyKey(_ context.Context, userID, key string) (*d.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	id, ok := m.byKey[sessionKey{userID, key}]
	if !ok {
		return nil, r.ErrIdempotencyKeyNotFound
	}
	s := m.byID[id]
	return &s, nil
}

func (m *MockSessions) GetSessionsByStatus(_ context.Context, status d.CheckoutStatus, _ time.Time, limit int) ([]*d.CheckoutSession, error) {
	return m.filter(limit, func(s d.CheckoutSession) bool { return s.Status == status }), nil
}

func (m *MockSessions) GetUnclearedSettledSessions(_ context.Context, limit int) ([]*d.CheckoutSession, error) {
	return m.filter(limit, func(s d.CheckoutSession) bool {
		return s.Status == d.CheckoutStatusSettled && !s.CartCleared
	}), nil
}

func (m *MockSessions) filter(limit int, keep func(d.CheckoutSession) bool) []*d.CheckoutSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*d.CheckoutSession
	for _, s := range m.byID {
		if keep(s) && len(out) < limit {
			cp := s
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MockSessions) Get(id uuid.UUID) d.CheckoutSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *MockSessions) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// MockOrders is an in-memory OrderStore enforcing one order per intent and per checkout.
type MockOrders struct {
	mu           sync.Mutex
	Orders       []*d.Order
	CreateErr    error
	LookupErr    error
	CreateCalls  int
	CreateCtxErr error
}

func (m *MockOrders) CreateOrder(ctx context.Context, order *d.Order) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	m.CreateCtxErr = ctx.Err()
	if m.CreateErr != nil {
		return uuid.Nil, m.CreateErr
	}
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	for _, o := range m.Orders {
		if o.CheckoutID == order.CheckoutID ||
			(o.PaymentIntentID != nil && order.PaymentIntentID != nil && *o.PaymentIntentID == *order.PaymentIntentID) {
			return uuid.Nil, r.ErrDuplicateOrder
		}
	}
	m.Orders = append(m.Orders, order)
	return order.ID, nil
}

func (m *MockOrders) GetOrderByIntentID(_ context.Context, intentID string) (*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	for _, o := range m.Orders {
		if o.PaymentIntentID != nil && *o.PaymentIntentID == intentID {
			return o, nil
		}
	}
	return nil, r.ErrOrderNotFound
}

func (m *MockOrders) GetOrderByCheckoutID(_ context.Context, checkoutID uuid.UUID) (*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	for _, o := range m.Orders {
		if o.CheckoutID == checkoutID {
			return o, nil
		}
	}
	return nil, r.ErrOrderNotFound
}

type MockCarts struct {
	ClearCalls       int
	ConditionalCalls int
	ClearErr         error
	ClearedUsers     []string
}

func (m *MockCarts) ClearCart(_ context.Context, userID string) error {
	m.ClearCalls++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.ClearedUsers = append(m.ClearedUsers, userID)
	return nil
}

func (m *MockCarts) ClearCartIfUnchanged(_ context.Context, userID string, _ time.Time) error {
	m.ConditionalCalls++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.ClearedUsers = append(m.ClearedUsers, userID)
	return nil
}

type MockIssuer struct {
	Calls          int
	Err            error
	LastAmount     d.Money
	IdempotencyKey string
}

func (m *MockIssuer) CreateIntent(_ context.Context, amount d.Money, idempotencyKey string) (*d.ChargeIntent, error) {
	m.Calls++
	m.LastAmount = amount
	m.IdempotencyKey = idempotencyKey
	if m.Err != nil {
		return nil, m.Err
	}
	return &d.ChargeIntent{
		IntentID:     "pi_" + idempotencyKey,
		Amount:       amount,
		Status:       d.IntentStatusCreated,
		ClientSecret: "pi_" + idempotencyKey + "_secret",
	}, nil
}

// MockConfirmer returns Verdicts in order; the last one repeats.
type MockConfirmer struct {
	Verdicts      []d.Verdict
	Err           error
	LookupVerdict d.Verdict
	LookupErr     error
	ConfirmCalls  int
	LookupCalls   int
	LastBilling   d.BillingDetails
	LastCard      d.CardInput
	OnConfirm     func()
}

func (m *MockConfirmer) Confirm(_ context.Context, _ *d.ChargeIntent, card d.CardInput, billing d.BillingDetails) (d.Verdict, error) {
	m.ConfirmCalls++
	m.LastBilling = billing
	m.LastCard = card
	if m.OnConfirm != nil {
		m.OnConfirm()
	}
	if m.Err != nil {
		return d.Verdict{}, m.Err
	}
	i := m.ConfirmCalls - 1
	if i >= len(m.Verdicts) {
		i = len(m.Verdicts) - 1
	}
	return m.Verdicts[i], nil
}

func (m *MockConfirmer) Lookup(_ context.Context, _ string) (d.Verdict, error) {
	m.LookupCalls++
	return m.LookupVerdict, m.LookupErr
}

type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool
	Err  error
}

func (m *MockLocker) Acquire(_ context.Context, userID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.held == nil {
		m.held = map[string]bool{}
	}
	if m.held[userID] {
		return nil, lock.ErrLocked
	}
	m.held[userID] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, userID)
	}, nil
}
