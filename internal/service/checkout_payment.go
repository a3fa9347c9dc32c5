package service

import (
	"context"
	"errors"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/google/uuid"
)

func (s *SettlementService) payByCard(ctx context.Context, sess *d.CheckoutSession, card d.CardInput) (*d.CheckoutResult, error) {
	intent, err := s.issuer.CreateIntent(ctx, sess.Amount, sess.ID.String())
	if err != nil {
		return nil, s.abortIssue(ctx, sess, err)
	}

	sess.IntentID = &intent.IntentID
	sess.ClientSecret = &intent.ClientSecret
	if err := advance(sess, d.CheckoutStatusIntentIssued); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, newError(KindFatal, sess, "checkout could not be recorded", true, err)
	}

	// Without a card the client confirms through the gateway SDK and then calls ConfirmPayment.
	if card.PaymentMethodID == "" {
		return d.ResultFromSession(sess), nil
	}
	return s.confirm(ctx, sess, card)
}

func (s *SettlementService) abortIssue(ctx context.Context, sess *d.CheckoutSession, cause error) error {
	kind, reason, retryable := KindFatal, "payment could not be started", false
	switch {
	case errors.Is(cause, gateway.ErrInvalidAmount):
		kind, reason = KindValidation, "payment amount was rejected"
	case errors.Is(cause, gateway.ErrGatewayUnavailable):
		kind, reason, retryable = KindGatewayUnavailable, "payment gateway is unavailable, please retry", true
	}

	if err := advance(sess, d.CheckoutStatusAborted); err != nil {
		return err
	}
	reasonOf(sess, cause.Error())
	_ = s.save(ctx, sess)
	record(sess)
	logger.FromContext(ctx).Warn("intent issue failed", "checkout_id", sess.ID, "kind", kind, "error", cause)
	return newError(kind, sess, reason, retryable, cause)
}

// confirm submits the card and applies the verdict. A transport failure leaves the session in
// CONFIRMING because the gateway may or may not have charged the card.
func (s *SettlementService) confirm(ctx context.Context, sess *d.CheckoutSession, card d.CardInput) (*d.CheckoutResult, error) {
	intent := sess.Intent()
	if intent == nil || intent.IsFinal() {
		return nil, validationError(sess, "checkout is not awaiting payment", ErrNotAwaitingPayment)
	}
	if err := enterConfirming(sess); err != nil {
		return nil, err
	}
	sess.FailureReason = nil
	if err := s.save(ctx, sess); err != nil {
		return nil, newError(KindFatal, sess, "checkout could not be recorded", true, err)
	}

	billing := d.BillingFromAddress(sess.CustomerName, sess.CustomerEmail, sess.Address)
	verdict, err := s.confirmer.Confirm(ctx, intent, card, billing)
	if err != nil {
		if errors.Is(err, gateway.ErrMissingPaymentMethod) {
			return nil, validationError(sess, "card details are required", err)
		}
		logger.FromContext(ctx).Warn("payment confirmation outcome unknown", "checkout_id", sess.ID, "error", err)
		return nil, newError(KindGatewayUnavailable, sess, "payment confirmation did not complete, please retry", true, err)
	}
	return s.applyVerdict(ctx, sess, verdict)
}

// ConfirmPayment resumes an attempt: after a challenge, after a decline with a new card, after a
// client-side SDK confirmation, or after a confirm call whose outcome was lost.
func (s *SettlementService) ConfirmPayment(ctx context.Context, checkoutID uuid.UUID, card d.CardInput) (*d.CheckoutResult, error) {
	sess, err := s.loadSession(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if sess.Status.MoneyCaptured() {
		return d.ResultFromSession(sess), nil
	}
	if !awaitingPayment(sess.Status) || sess.IntentID == nil {
		return nil, validationError(sess, "checkout is not awaiting payment", ErrNotAwaitingPayment)
	}

	release, err := s.acquire(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	// The gateway is authoritative: resolve what already happened before submitting anything.
	// A client may have confirmed through the SDK or finished a challenge at any time.
	verdict, err := s.confirmer.Lookup(ctx, *sess.IntentID)
	if err != nil {
		return nil, newError(KindGatewayUnavailable, sess, "payment status could not be checked, please retry", true, err)
	}
	switch verdict.Outcome {
	case d.VerdictSucceeded, d.VerdictError, d.VerdictRequiresAction:
		return s.resolve(ctx, sess, verdict)
	case d.VerdictPending:
		res := d.ResultFromSession(sess)
		res.Message = "payment is processing"
		return res, nil
	case d.VerdictDeclined:
		if card.PaymentMethodID == "" {
			return s.resolve(ctx, sess, verdict)
		}
	case d.VerdictUnconfirmed:
		if card.PaymentMethodID == "" {
			res := d.ResultFromSession(sess)
			res.Message = "awaiting payment confirmation"
			return res, nil
		}
	}

	return s.confirm(ctx, sess, card)
}

// resolve applies a verdict learned from a lookup rather than from our own confirm call.
func (s *SettlementService) resolve(ctx context.Context, sess *d.CheckoutSession, verdict d.Verdict) (*d.CheckoutResult, error) {
	if verdict.Outcome == d.VerdictRequiresAction && sess.Status == d.CheckoutStatusActionRequired {
		res := d.ResultFromSession(sess)
		res.NextActionURL = verdict.NextActionURL
		res.Message = "additional authentication required"
		return res, nil
	}
	if err := enterConfirming(sess); err != nil {
		return nil, err
	}
	return s.applyVerdict(ctx, sess, verdict)
}

func (s *SettlementService) applyVerdict(ctx context.Context, sess *d.CheckoutSession, verdict d.Verdict) (*d.CheckoutResult, error) {
	log := logger.FromContext(ctx).With("checkout_id", sess.ID, "intent_id", sess.IntentID)

	switch verdict.Outcome {
	case d.VerdictSucceeded:
		return s.settle(ctx, sess, verdict.ChargeID)

	case d.VerdictDeclined:
		if err := advance(sess, d.CheckoutStatusDeclined); err != nil {
			return nil, err
		}
		reasonOf(sess, verdict.Reason)
		_ = s.save(ctx, sess)
		record(sess)
		log.Info("payment declined", "reason", verdict.Reason)
		return nil, newError(KindDeclined, sess, verdict.Reason, false, nil)

	case d.VerdictRequiresAction:
		if err := advance(sess, d.CheckoutStatusActionRequired); err != nil {
			return nil, err
		}
		_ = s.save(ctx, sess)
		log.Info("payment requires customer action")
		res := d.ResultFromSession(sess)
		res.NextActionURL = verdict.NextActionURL
		res.Message = "additional authentication required"
		return res, nil

	case d.VerdictPending:
		res := d.ResultFromSession(sess)
		res.Message = "payment is processing"
		return res, nil

	case d.VerdictError:
		if err := advance(sess, d.CheckoutStatusAborted); err != nil {
			return nil, err
		}
		reasonOf(sess, verdict.Reason)
		_ = s.save(ctx, sess)
		record(sess)
		log.Error("payment failed", "reason", verdict.Reason)
		return nil, newError(KindFatal, sess, "payment failed: "+verdict.Reason, false, nil)
	}

	log.Error("unmapped gateway verdict", "outcome", verdict.Outcome)
	return nil, newError(KindFatal, sess, "unexpected payment gateway response", false, nil)
}

func awaitingPayment(status d.CheckoutStatus) bool {
	switch status {
	case d.CheckoutStatusIntentIssued,
		d.CheckoutStatusConfirming,
		d.CheckoutStatusActionRequired,
		d.CheckoutStatusDeclined:
		return true
	}
	return false
}

func enterConfirming(sess *d.CheckoutSession) error {
	if sess.Status == d.CheckoutStatusConfirming {
		return nil
	}
	return advance(sess, d.CheckoutStatusConfirming)
}
