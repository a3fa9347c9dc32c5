package service

import (
	"context"
	"errors"
	"testing"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/address"
	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	"github.com/fjod/go_cart/settlement-service/internal/pricing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *SettlementService
	sessions  *MockSessions
	orders    *MockOrders
	carts     *MockCarts
	issuer    *MockIssuer
	confirmer *MockConfirmer
	locker    *MockLocker
}

func newFixture(t *testing.T, verdicts ...d.Verdict) *fixture {
	t.Helper()
	shipping, err := d.NewMoney(500, "USD")
	require.NoError(t, err)
	tax, err := d.NewMoney(200, "USD")
	require.NoError(t, err)
	calc, err := pricing.NewCalculator(shipping, tax)
	require.NoError(t, err)

	if len(verdicts) == 0 {
		verdicts = []d.Verdict{d.Succeeded("ch_1")}
	}
	f := &fixture{
		sessions:  NewMockSessions(),
		orders:    &MockOrders{},
		carts:     &MockCarts{},
		issuer:    &MockIssuer{},
		confirmer: &MockConfirmer{Verdicts: verdicts},
		locker:    &MockLocker{},
	}
	f.svc = NewSettlementService(Dependencies{
		Sessions:     f.sessions,
		Orders:       f.orders,
		Carts:        f.carts,
		Addresses:    address.NewNormalizer(address.DefaultTable()),
		Calculator:   calc,
		Issuer:       f.issuer,
		Confirmer:    f.confirmer,
		Locker:       f.locker,
		StoreTimeout: time.Second,
	})
	return f
}

// cartRequest is a $40.00 cart paid by card.
func cartRequest(key string) *d.CheckoutRequest {
	return &d.CheckoutRequest{
		UserID:         "user-1",
		IdempotencyKey: key,
		Address: d.ShippingAddress{
			Street:     "1 Main St",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62704",
			Country:    "United States",
		},
		PaymentMode:   d.PaymentModeCard,
		Card:          d.CardInput{PaymentMethodID: "pm_card_visa"},
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		Snapshot: d.NewCartSnapshot([]d.CartSnapshotItem{
			{ProductID: "p1", ProductName: "Mug", Quantity: 2, UnitPrice: 1500},
			{ProductID: "p2", ProductName: "Poster", Quantity: 1, UnitPrice: 1000},
		}, "USD", time.Now()),
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind) *SettlementError {
	t.Helper()
	require.Error(t, err)
	var se *SettlementError
	require.True(t, errors.As(err, &se), "expected *SettlementError, got %T", err)
	assert.Equal(t, kind, se.Kind)
	return se
}

func TestCheckout_CardSucceeds(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Checkout(context.Background(), cartRequest("key-a"))

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.Equal(t, int64(4700), f.issuer.LastAmount.Amount)
	assert.Equal(t, "USD", f.issuer.LastAmount.Currency)
	require.Len(t, f.orders.Orders, 1)
	order := f.orders.Orders[0]
	assert.Equal(t, int64(4700), order.Total.Amount)
	assert.Equal(t, "47.00 USD", order.Total.String())
	assert.Equal(t, d.OrderStatusConfirmed, order.Status)
	require.NotNil(t, order.ChargeID)
	assert.Equal(t, "ch_1", *order.ChargeID)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, order.ID, *res.OrderID)
	assert.Equal(t, []string{"user-1"}, f.carts.ClearedUsers)

	stored := f.sessions.Get(res.CheckoutID)
	assert.True(t, stored.CartCleared)
	assert.Equal(t, []d.CheckoutStatus{
		d.CheckoutStatusAmountComputed,
		d.CheckoutStatusIntentIssued,
		d.CheckoutStatusConfirming,
		d.CheckoutStatusSettled,
	}, f.sessions.History)
}

func TestCheckout_BillingIsNormalized(t *testing.T) {
	f := newFixture(t)
	req := cartRequest("key-billing")
	req.Address.PostalCode = "  62704"
	req.Address.Country = "India"

	_, err := f.svc.Checkout(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "62704", f.confirmer.LastBilling.Address.PostalCode)
	assert.Equal(t, "IN", f.confirmer.LastBilling.Address.Country)
	assert.Equal(t, "Jane Doe", f.confirmer.LastBilling.Name)
	assert.Equal(t, "pm_card_visa", f.confirmer.LastCard.PaymentMethodID)
}

func TestCheckout_EmptyCartFailsBeforeGateway(t *testing.T) {
	f := newFixture(t)
	req := cartRequest("key-b")
	req.Snapshot = d.NewCartSnapshot(nil, "USD", time.Now())

	_, err := f.svc.Checkout(context.Background(), req)

	requireKind(t, err, KindValidation)
	assert.Zero(t, f.issuer.Calls)
	assert.Zero(t, f.confirmer.ConfirmCalls)
	assert.Zero(t, f.sessions.Count())
}

func TestCheckout_DeclinedLeavesOrderAndCart(t *testing.T) {
	f := newFixture(t, d.Declined("Your card was declined."))

	_, err := f.svc.Checkout(context.Background(), cartRequest("key-c"))

	se := requireKind(t, err, KindDeclined)
	assert.Equal(t, "Your card was declined.", se.Reason)
	assert.Equal(t, d.CheckoutStatusDeclined, se.Status)
	assert.False(t, se.Retryable)
	assert.Zero(t, f.orders.CreateCalls)
	assert.Zero(t, f.carts.ClearCalls)
}

func TestCheckout_OrderWriteFailsAfterCapture(t *testing.T) {
	f := newFixture(t)
	f.orders.CreateErr = errors.New("connection reset")

	_, err := f.svc.Checkout(context.Background(), cartRequest("key-d"))

	se := requireKind(t, err, KindPartialSettlement)
	assert.True(t, se.Retryable)
	assert.Contains(t, se.Reason, "charged")
	assert.Equal(t, d.CheckoutStatusPartiallySettled, f.sessions.Get(se.CheckoutID).Status)
	assert.Zero(t, f.carts.ClearCalls)
}

func TestRetryOrderCreation_CreatesSingleOrder(t *testing.T) {
	f := newFixture(t)
	f.orders.CreateErr = errors.New("connection reset")
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, cartRequest("key-retry"))
	se := requireKind(t, err, KindPartialSettlement)

	f.orders.CreateErr = nil
	res, err := f.svc.RetryOrderCreation(ctx, se.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)

	again, err := f.svc.RetryOrderCreation(ctx, se.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, again.OrderID)
	assert.Len(t, f.orders.Orders, 1)
	assert.Equal(t, 1, f.issuer.Calls)
	assert.Equal(t, 1, f.confirmer.ConfirmCalls)
	assert.Equal(t, 1, f.carts.ClearCalls)
}

func TestRetryOrderCreation_RejectsUnpaidCheckout(t *testing.T) {
	f := newFixture(t, d.Declined("insufficient funds"))
	ctx := context.Background()
	_, err := f.svc.Checkout(ctx, cartRequest("key-unpaid"))
	se := requireKind(t, err, KindDeclined)

	_, err = f.svc.RetryOrderCreation(ctx, se.CheckoutID)

	requireKind(t, err, KindValidation)
	assert.ErrorIs(t, err, ErrNotPartiallySettled)
	assert.Zero(t, f.orders.CreateCalls)
}

func TestCheckout_ExistingOrderForIntentIsReused(t *testing.T) {
	f := newFixture(t)
	req := cartRequest("key-existing")
	ctx := context.Background()

	// The first response was lost after the order was written.
	res, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	sess := f.sessions.Get(res.CheckoutID)
	sess.Status = d.CheckoutStatusPartiallySettled
	require.NoError(t, f.sessions.UpdateCheckoutSession(ctx, &sess))

	again, err := f.svc.RetryOrderCreation(ctx, res.CheckoutID)

	require.NoError(t, err)
	assert.Equal(t, res.OrderID, again.OrderID)
	assert.Equal(t, 1, f.orders.CreateCalls)
	assert.Len(t, f.orders.Orders, 1)
}

func TestCheckout_ReplayedKeyReturnsStoredAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Checkout(ctx, cartRequest("key-replay"))
	require.NoError(t, err)
	second, err := f.svc.Checkout(ctx, cartRequest("key-replay"))
	require.NoError(t, err)

	assert.Equal(t, first.CheckoutID, second.CheckoutID)
	assert.Equal(t, d.CheckoutStatusSettled, second.Status)
	assert.Equal(t, 1, f.issuer.Calls)
	assert.Len(t, f.orders.Orders, 1)
}

func TestCheckout_IdempotencyKeyIsScopedToUser(t *testing.T) {
	f := newFixture(t, d.RequiresAction("https://hooks.stripe.com/3ds"))
	ctx := context.Background()

	first, err := f.svc.Checkout(ctx, cartRequest("shared-key"))
	require.NoError(t, err)

	other := cartRequest("shared-key")
	other.UserID = "user-2"
	second, err := f.svc.Checkout(ctx, other)
	require.NoError(t, err)

	assert.NotEqual(t, first.CheckoutID, second.CheckoutID)
	assert.Equal(t, "user-2", second.UserID)
	require.NotNil(t, first.ClientSecret)
	require.NotNil(t, second.ClientSecret)
	assert.NotEqual(t, *first.ClientSecret, *second.ClientSecret)
	assert.Equal(t, 2, f.issuer.Calls)
	assert.Equal(t, 2, f.sessions.Count())

	replay, err := f.svc.Checkout(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, second.CheckoutID, replay.CheckoutID)
	assert.Equal(t, 2, f.issuer.Calls)
}

func TestCheckout_ShortPostalCodeIsRejected(t *testing.T) {
	f := newFixture(t)
	req := cartRequest("key-postal")
	req.Address.PostalCode = "123"

	_, err := f.svc.Checkout(context.Background(), req)

	requireKind(t, err, KindValidation)
	assert.ErrorIs(t, err, address.ErrPostalCodeTooShort)
	assert.Zero(t, f.issuer.Calls)
	assert.Zero(t, f.confirmer.ConfirmCalls)
}

func TestCheckout_UnmappedCountryFallsBack(t *testing.T) {
	f := newFixture(t)
	req := cartRequest("key-country")
	req.Address.Country = "Atlantis"

	res, err := f.svc.Checkout(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.Equal(t, "US", f.confirmer.LastBilling.Address.Country)
}

func TestCheckout_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*d.CheckoutRequest)
		want   error
	}{
		{"missing key", func(r *d.CheckoutRequest) { r.IdempotencyKey = "" }, ErrMissingIdempotencyKey},
		{"missing user", func(r *d.CheckoutRequest) { r.UserID = "" }, ErrMissingUser},
		{"unknown mode", func(r *d.CheckoutRequest) { r.PaymentMode = "BARTER" }, ErrUnsupportedPaymentMode},
		{"missing street", func(r *d.CheckoutRequest) { r.Address.Street = "" }, address.ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := cartRequest("key-" + tt.name)
			tt.mutate(req)

			_, err := f.svc.Checkout(context.Background(), req)

			requireKind(t, err, KindValidation)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.issuer.Calls)
		})
	}
}

func TestCheckout_CashOnDelivery(t *testing.T) {
	f := newFixture(t)
	req := cartRequest("key-cod")
	req.PaymentMode = d.PaymentModeCOD
	req.Card = d.CardInput{}

	res, err := f.svc.Checkout(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.Zero(t, f.issuer.Calls)
	assert.Zero(t, f.confirmer.ConfirmCalls)
	require.Len(t, f.orders.Orders, 1)
	assert.Equal(t, d.PaymentModeCOD, f.orders.Orders[0].PaymentMode)
	assert.Equal(t, d.OrderStatusPending, f.orders.Orders[0].Status)
	assert.Nil(t, f.orders.Orders[0].PaymentIntentID)
	assert.Equal(t, 1, f.carts.ClearCalls)
}

func TestCheckout_CashOnDeliveryOrderFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.orders.CreateErr = errors.New("db down")
	req := cartRequest("key-cod-fail")
	req.PaymentMode = d.PaymentModeCOD

	_, err := f.svc.Checkout(context.Background(), req)

	se := requireKind(t, err, KindFatal)
	assert.True(t, se.Retryable)
	assert.Equal(t, d.CheckoutStatusAborted, f.sessions.Get(se.CheckoutID).Status)
	assert.Zero(t, f.carts.ClearCalls)
}

func TestCheckout_IssueUnavailableAborts(t *testing.T) {
	f := newFixture(t)
	f.issuer.Err = gateway.ErrGatewayUnavailable

	_, err := f.svc.Checkout(context.Background(), cartRequest("key-unavailable"))

	se := requireKind(t, err, KindGatewayUnavailable)
	assert.True(t, se.Retryable)
	assert.Equal(t, d.CheckoutStatusAborted, f.sessions.Get(se.CheckoutID).Status)
	assert.Zero(t, f.confirmer.ConfirmCalls)
	assert.Zero(t, f.orders.CreateCalls)
}

func TestCheckout_IssueRejectedAmount(t *testing.T) {
	f := newFixture(t)
	f.issuer.Err = gateway.ErrInvalidAmount

	_, err := f.svc.Checkout(context.Background(), cartRequest("key-amount"))

	requireKind(t, err, KindValidation)
	assert.Zero(t, f.confirmer.ConfirmCalls)
}

func TestCheckout_VerdictErrorIsFatal(t *testing.T) {
	f := newFixture(t, d.VerdictErr("processing_error"))

	_, err := f.svc.Checkout(context.Background(), cartRequest("key-error"))

	se := requireKind(t, err, KindFatal)
	assert.Equal(t, d.CheckoutStatusAborted, f.sessions.Get(se.CheckoutID).Status)
	assert.Zero(t, f.orders.CreateCalls)
	assert.Zero(t, f.carts.ClearCalls)
}

func TestCheckout_WithoutCardReturnsClientSecret(t *testing.T) {
	f := newFixture(t)
	req := cartRequest("key-sdk")
	req.Card = d.CardInput{}
	ctx := context.Background()

	res, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusIntentIssued, res.Status)
	require.NotNil(t, res.ClientSecret)
	assert.NotEmpty(t, *res.ClientSecret)
	assert.Zero(t, f.confirmer.ConfirmCalls)

	f.confirmer.LookupVerdict = d.Succeeded("ch_sdk")
	done, err := f.svc.ConfirmPayment(ctx, res.CheckoutID, d.CardInput{})

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, done.Status)
	assert.Equal(t, 1, f.confirmer.LookupCalls)
	assert.Zero(t, f.confirmer.ConfirmCalls)
	assert.Len(t, f.orders.Orders, 1)
}

func TestConfirmPayment_AfterRequiresAction(t *testing.T) {
	f := newFixture(t, d.RequiresAction("https://hooks.stripe.com/3ds"))
	ctx := context.Background()

	res, err := f.svc.Checkout(ctx, cartRequest("key-3ds"))
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusActionRequired, res.Status)
	assert.Equal(t, "https://hooks.stripe.com/3ds", res.NextActionURL)
	assert.Zero(t, f.orders.CreateCalls)

	f.confirmer.LookupVerdict = d.Succeeded("ch_3ds")
	done, err := f.svc.ConfirmPayment(ctx, res.CheckoutID, d.CardInput{})

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, done.Status)
	require.Len(t, f.orders.Orders, 1)
	assert.Equal(t, "ch_3ds", *f.orders.Orders[0].ChargeID)
}

func TestConfirmPayment_NewCardAfterDecline(t *testing.T) {
	f := newFixture(t, d.Declined("card_declined"), d.Succeeded("ch_2"))
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, cartRequest("key-second-card"))
	se := requireKind(t, err, KindDeclined)

	f.confirmer.LookupVerdict = d.Declined("card_declined")
	res, err := f.svc.ConfirmPayment(ctx, se.CheckoutID, d.CardInput{PaymentMethodID: "pm_card_mastercard"})

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.Equal(t, 1, f.issuer.Calls)
	assert.Equal(t, 2, f.confirmer.ConfirmCalls)
	assert.Equal(t, "pm_card_mastercard", f.confirmer.LastCard.PaymentMethodID)
	assert.Len(t, f.orders.Orders, 1)
}

// sdkCheckout starts a card checkout whose confirmation is left to the client.
func sdkCheckout(t *testing.T, f *fixture, key string) uuid.UUID {
	t.Helper()
	req := cartRequest(key)
	req.Card = d.CardInput{}
	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, d.CheckoutStatusIntentIssued, res.Status)
	return res.CheckoutID
}

func TestConfirmPayment_CardAfterClientAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	id := sdkCheckout(t, f, "key-paid-by-sdk")

	f.confirmer.LookupVerdict = d.Succeeded("ch_sdk")
	res, err := f.svc.ConfirmPayment(context.Background(), id, d.CardInput{PaymentMethodID: "pm_card_visa"})

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.Zero(t, f.confirmer.ConfirmCalls)
	require.Len(t, f.orders.Orders, 1)
	assert.Equal(t, "ch_sdk", *f.orders.Orders[0].ChargeID)
}

func TestConfirmPayment_UnconfirmedIntentTakesCard(t *testing.T) {
	f := newFixture(t)
	id := sdkCheckout(t, f, "key-unconfirmed")

	f.confirmer.LookupVerdict = d.Verdict{Outcome: d.VerdictUnconfirmed}
	waiting, err := f.svc.ConfirmPayment(context.Background(), id, d.CardInput{})
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusIntentIssued, waiting.Status)
	assert.Zero(t, f.confirmer.ConfirmCalls)

	res, err := f.svc.ConfirmPayment(context.Background(), id, d.CardInput{PaymentMethodID: "pm_card_visa"})

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.Equal(t, 1, f.confirmer.ConfirmCalls)
	assert.Len(t, f.orders.Orders, 1)
}

func TestConfirmPayment_ProcessingIsNotSubmittedAgain(t *testing.T) {
	f := newFixture(t)
	f.confirmer.Err = gateway.ErrGatewayUnavailable
	_, err := f.svc.Checkout(context.Background(), cartRequest("key-processing"))
	se := requireKind(t, err, KindGatewayUnavailable)

	f.confirmer.Err = nil
	f.confirmer.LookupVerdict = d.Verdict{Outcome: d.VerdictPending}
	res, err := f.svc.ConfirmPayment(context.Background(), se.CheckoutID, d.CardInput{PaymentMethodID: "pm_card_visa"})

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusConfirming, res.Status)
	assert.Equal(t, 1, f.confirmer.ConfirmCalls)
	assert.Zero(t, f.orders.CreateCalls)
}

func TestConfirmPayment_SettledCheckoutIsNotChargedAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, cartRequest("key-settled"))
	require.NoError(t, err)

	again, err := f.svc.ConfirmPayment(ctx, res.CheckoutID, d.CardInput{PaymentMethodID: "pm_card_visa"})

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, again.Status)
	assert.Equal(t, 1, f.confirmer.ConfirmCalls)
	assert.Zero(t, f.confirmer.LookupCalls)
}

func TestConfirmPayment_UnknownCheckout(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmPayment(context.Background(), uuid.New(), d.CardInput{})

	requireKind(t, err, KindValidation)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestCheckout_ConfirmTimeoutResolvedByLookup(t *testing.T) {
	f := newFixture(t)
	f.confirmer.Err = gateway.ErrGatewayUnavailable
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, cartRequest("key-timeout"))
	se := requireKind(t, err, KindGatewayUnavailable)
	assert.True(t, se.Retryable)
	assert.Equal(t, d.CheckoutStatusConfirming, f.sessions.Get(se.CheckoutID).Status)
	assert.Zero(t, f.orders.CreateCalls)

	// The charge went through; the retry must find it instead of confirming again.
	f.confirmer.Err = nil
	f.confirmer.LookupVerdict = d.Succeeded("ch_late")
	res, err := f.svc.ConfirmPayment(ctx, se.CheckoutID, d.CardInput{PaymentMethodID: "pm_card_visa"})

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.Equal(t, 1, f.confirmer.ConfirmCalls)
	assert.Equal(t, 1, f.confirmer.LookupCalls)
	assert.Len(t, f.orders.Orders, 1)
}

func TestCheckout_CancelledBeforeVerdictLeavesStores(t *testing.T) {
	f := newFixture(t)
	f.confirmer.Err = context.Canceled

	_, err := f.svc.Checkout(context.Background(), cartRequest("key-cancel"))

	requireKind(t, err, KindGatewayUnavailable)
	assert.Zero(t, f.orders.CreateCalls)
	assert.Zero(t, f.carts.ClearCalls)
}

func TestCheckout_CancelledAfterSuccessStillPersists(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.confirmer.OnConfirm = cancel

	res, err := f.svc.Checkout(ctx, cartRequest("key-detached"))

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.Len(t, f.orders.Orders, 1)
	assert.NoError(t, f.orders.CreateCtxErr)
	assert.Equal(t, 1, f.carts.ClearCalls)
}

func TestCheckout_CartClearFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.carts.ClearErr = errors.New("mongo unavailable")
	ctx := context.Background()

	res, err := f.svc.Checkout(ctx, cartRequest("key-cart"))

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
	assert.False(t, f.sessions.Get(res.CheckoutID).CartCleared)

	f.carts.ClearErr = nil
	cleared, err := f.svc.ClearSettledCarts(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.Equal(t, 1, f.carts.ConditionalCalls)
	assert.True(t, f.sessions.Get(res.CheckoutID).CartCleared)
}

func TestCheckout_ConcurrentAttemptIsRejected(t *testing.T) {
	f := newFixture(t)
	release, err := f.locker.Acquire(context.Background(), "user-1")
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Checkout(context.Background(), cartRequest("key-locked"))

	requireKind(t, err, KindValidation)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Zero(t, f.issuer.Calls)
}

func TestCheckout_LockOutageDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.locker.Err = errors.New("redis: connection refused")

	res, err := f.svc.Checkout(context.Background(), cartRequest("key-lock-down"))

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSettled, res.Status)
}

func TestRecoverPartialSettlements(t *testing.T) {
	f := newFixture(t)
	f.orders.CreateErr = errors.New("connection reset")
	ctx := context.Background()
	_, err := f.svc.Checkout(ctx, cartRequest("key-recover"))
	se := requireKind(t, err, KindPartialSettlement)

	f.orders.CreateErr = nil
	n, err := f.svc.RecoverPartialSettlements(ctx, 0, 10)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, d.CheckoutStatusSettled, f.sessions.Get(se.CheckoutID).Status)
	assert.Len(t, f.orders.Orders, 1)
}

func TestResolveStaleConfirmations(t *testing.T) {
	f := newFixture(t)
	f.confirmer.Err = gateway.ErrGatewayUnavailable
	ctx := context.Background()
	_, err := f.svc.Checkout(ctx, cartRequest("key-stale"))
	se := requireKind(t, err, KindGatewayUnavailable)

	f.confirmer.LookupVerdict = d.Verdict{Outcome: d.VerdictPending}
	n, err := f.svc.ResolveStaleConfirmations(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, d.CheckoutStatusConfirming, f.sessions.Get(se.CheckoutID).Status)

	f.confirmer.LookupVerdict = d.Declined("expired_card")
	n, err = f.svc.ResolveStaleConfirmations(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, d.CheckoutStatusDeclined, f.sessions.Get(se.CheckoutID).Status)
	assert.Zero(t, f.orders.CreateCalls)
}

func TestResolveStaleConfirmations_ClientConfirmedIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := sdkCheckout(t, f, "key-abandoned-sdk")

	f.confirmer.LookupVerdict = d.Verdict{Outcome: d.VerdictUnconfirmed}
	n, err := f.svc.ResolveStaleConfirmations(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, d.CheckoutStatusIntentIssued, f.sessions.Get(id).Status)

	f.confirmer.LookupVerdict = d.Succeeded("ch_sdk")
	n, err = f.svc.ResolveStaleConfirmations(ctx, 0, 10)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stored := f.sessions.Get(id)
	assert.Equal(t, d.CheckoutStatusSettled, stored.Status)
	assert.True(t, stored.CartCleared)
	require.Len(t, f.orders.Orders, 1)
	assert.Equal(t, "ch_sdk", *f.orders.Orders[0].ChargeID)
	assert.Zero(t, f.confirmer.ConfirmCalls)
}

func TestResolveStaleConfirmations_ChallengeCompletedAfterLeaving(t *testing.T) {
	f := newFixture(t, d.RequiresAction("https://hooks.stripe.com/3ds"))
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, cartRequest("key-abandoned-3ds"))
	require.NoError(t, err)
	require.Equal(t, d.CheckoutStatusActionRequired, res.Status)

	f.confirmer.LookupVerdict = d.RequiresAction("https://hooks.stripe.com/3ds")
	n, err := f.svc.ResolveStaleConfirmations(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, d.CheckoutStatusActionRequired, f.sessions.Get(res.CheckoutID).Status)

	f.confirmer.LookupVerdict = d.Succeeded("ch_3ds")
	n, err = f.svc.ResolveStaleConfirmations(ctx, 0, 10)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, d.CheckoutStatusSettled, f.sessions.Get(res.CheckoutID).Status)
	assert.Len(t, f.orders.Orders, 1)
}

func TestResolveStaleConfirmations_SkipsAttemptInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := sdkCheckout(t, f, "key-busy")

	release, err := f.locker.Acquire(ctx, "user-1")
	require.NoError(t, err)
	f.confirmer.LookupVerdict = d.Succeeded("ch_sdk")
	n, err := f.svc.ResolveStaleConfirmations(ctx, 0, 10)
	release()

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.confirmer.LookupCalls)
	assert.Equal(t, d.CheckoutStatusIntentIssued, f.sessions.Get(id).Status)
}

func TestGetCheckout(t *testing.T) {
	f := newFixture(t)
	req := cartRequest("key-get")
	req.Card = d.CardInput{}
	ctx := context.Background()
	created, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	res, err := f.svc.GetCheckout(ctx, created.CheckoutID)

	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusIntentIssued, res.Status)
	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, int64(4700), res.Amount.Amount)

	_, err = f.svc.GetCheckout(ctx, uuid.New())
	requireKind(t, err, KindValidation)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindFatal, KindOf(errors.New("boom")))
	assert.Equal(t, KindDeclined, KindOf(newError(KindDeclined, nil, "no", false, nil)))
}
