package service

import (
	"context"
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/lock"
	"github.com/fjod/go_cart/settlement-service/internal/metrics"
	r "github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/google/uuid"
)

// Checkout runs one attempt: validate address, compute amount, issue intent, confirm, settle.
// A replayed idempotency key returns the stored attempt without touching the gateway.
func (s *SettlementService) Checkout(ctx context.Context, request *d.CheckoutRequest) (*d.CheckoutResult, error) {
	if request.IdempotencyKey == "" {
		return nil, validationError(nil, "idempotency key is required", ErrMissingIdempotencyKey)
	}
	if request.UserID == "" {
		return nil, validationError(nil, "user is required", ErrMissingUser)
	}

	if existing, err := s.findByIdempotencyKey(ctx, request.UserID, request.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	release, err := s.acquire(ctx, request.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	mode, ok := d.ParsePaymentMode(string(request.PaymentMode))
	if !ok {
		return nil, validationError(nil, fmt.Sprintf("payment mode %q is not supported", request.PaymentMode), ErrUnsupportedPaymentMode)
	}

	sess := &d.CheckoutSession{
		ID:             uuid.New(),
		UserID:         request.UserID,
		IdempotencyKey: request.IdempotencyKey,
		Status:         d.CheckoutStatusIdle,
		PaymentMode:    mode,
		Snapshot:       request.Snapshot.Clone(),
		CustomerName:   request.CustomerName,
		CustomerEmail:  request.CustomerEmail,
	}
	log := logger.FromContext(ctx).With("checkout_id", sess.ID, "user_id", sess.UserID)

	addr, err := s.addresses.Normalize(ctx, request.Address)
	if err != nil {
		return nil, validationError(sess, "shipping address is invalid", err)
	}
	sess.Address = addr
	if err := advance(sess, d.CheckoutStatusAddressValidated); err != nil {
		return nil, err
	}

	amount, err := s.calculator.Total(sess.Snapshot)
	if err != nil {
		return nil, validationError(sess, "cart total could not be computed", err)
	}
	if !amount.IsPositive() {
		return nil, validationError(sess, "cart total must be positive", ErrInvalidAmount)
	}
	sess.Amount = amount
	if err := advance(sess, d.CheckoutStatusAmountComputed); err != nil {
		return nil, err
	}

	if err := s.sessions.CreateCheckoutSession(ctx, sess); err != nil {
		if errors.Is(err, r.ErrDuplicateSession) {
			existing, findErr := s.findByIdempotencyKey(ctx, request.UserID, request.IdempotencyKey)
			if findErr != nil || existing != nil {
				return existing, findErr
			}
		}
		return nil, newError(KindFatal, sess, "checkout could not be recorded", true, err)
	}
	log.Info("checkout started", "amount", sess.Amount.String(), "payment_mode", sess.PaymentMode)

	if sess.PaymentMode != d.PaymentModeCard {
		return s.settleWithoutPayment(ctx, sess)
	}
	return s.payByCard(ctx, sess, request.Card)
}

func (s *SettlementService) GetCheckout(ctx context.Context, checkoutID uuid.UUID) (*d.CheckoutResult, error) {
	sess, err := s.loadSession(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	return d.ResultFromSession(sess), nil
}

func (s *SettlementService) findByIdempotencyKey(ctx context.Context, userID, key string) (*d.CheckoutResult, error) {
	existing, err := s.sessions.GetCheckoutSessionByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, r.ErrIdempotencyKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(KindFatal, nil, "failed to check idempotency", true, err)
	}
	logger.FromContext(ctx).Info("duplicate checkout request",
		"idempotency_key", key, "checkout_id", existing.ID, "status", existing.Status)
	return d.ResultFromSession(existing), nil
}

func (s *SettlementService) loadSession(ctx context.Context, checkoutID uuid.UUID) (*d.CheckoutSession, error) {
	sess, err := s.sessions.GetCheckoutSession(ctx, checkoutID)
	if errors.Is(err, r.ErrSessionNotFound) {
		return nil, validationError(nil, "checkout not found", ErrCheckoutNotFound)
	}
	if err != nil {
		return nil, newError(KindFatal, nil, "checkout could not be loaded", true, err)
	}
	return sess, nil
}

// acquire serialises attempts per user. Lock infrastructure failures do not block checkout.
func (s *SettlementService) acquire(ctx context.Context, userID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, userID)
	if errors.Is(err, lock.ErrLocked) {
		return nil, validationError(nil, "another checkout is in progress", ErrCheckoutInProgress)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("checkout lock unavailable, continuing without it", "user_id", userID, "error", err)
		return func() {}, nil
	}
	return release, nil
}

func advance(sess *d.CheckoutSession, to d.CheckoutStatus) error {
	if !d.CanTransitionTo(sess.Status, to) {
		return newError(KindFatal, sess, fmt.Sprintf("cannot move from %s to %s", sess.Status, to), false, ErrIllegalTransition)
	}
	sess.Status = to
	return nil
}

// save persists sess; failures after money moved are logged, not returned.
func (s *SettlementService) save(ctx context.Context, sess *d.CheckoutSession) error {
	err := s.sessions.UpdateCheckoutSession(ctx, sess)
	if err != nil {
		logger.FromContext(ctx).Error("failed to persist checkout session",
			"checkout_id", sess.ID, "status", sess.Status, "error", err)
	}
	return err
}

func record(sess *d.CheckoutSession) {
	metrics.CheckoutOutcomes.WithLabelValues(string(sess.Status)).Inc()
}

func reasonOf(sess *d.CheckoutSession, reason string) {
	sess.FailureReason = &reason
}
