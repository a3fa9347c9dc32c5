package service

import (
	"context"
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/settlement-service/domain"
	r "github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/google/uuid"
)

const partialSettlementMessage = "payment captured, order pending: your card has been charged, " +
	"please retry order creation or contact support"

// settle records the order for a captured payment and then clears the cart.
// Writes run detached from the caller so an abandoned request cannot strand the payment.
func (s *SettlementService) settle(ctx context.Context, sess *d.CheckoutSession, chargeID string) (*d.CheckoutResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	log := logger.FromContext(ctx).With("checkout_id", sess.ID, "intent_id", sess.IntentID)

	if chargeID != "" {
		sess.ChargeID = &chargeID
	}

	order, err := s.persistOrder(ctx, sess)
	if err != nil {
		if sess.Status != d.CheckoutStatusPartiallySettled {
			if advErr := advance(sess, d.CheckoutStatusPartiallySettled); advErr != nil {
				return nil, advErr
			}
			record(sess)
		}
		reasonOf(sess, err.Error())
		_ = s.save(ctx, sess)
		log.Error("payment captured but order was not persisted", "charge_id", chargeID, "error", err)
		return nil, newError(KindPartialSettlement, sess, partialSettlementMessage, true, err)
	}

	sess.OrderID = &order.ID
	sess.FailureReason = nil
	if err := advance(sess, d.CheckoutStatusSettled); err != nil {
		return nil, err
	}
	s.clearCart(ctx, sess)
	_ = s.save(ctx, sess)
	record(sess)
	log.Info("checkout settled", "order_id", order.ID, "amount", sess.Amount.String())
	return d.ResultFromSession(sess), nil
}

// settleWithoutPayment handles payment modes that collect money outside the gateway.
func (s *SettlementService) settleWithoutPayment(ctx context.Context, sess *d.CheckoutSession) (*d.CheckoutResult, error) {
	order, err := s.persistOrder(ctx, sess)
	if err != nil {
		if advErr := advance(sess, d.CheckoutStatusAborted); advErr != nil {
			return nil, advErr
		}
		reasonOf(sess, err.Error())
		_ = s.save(ctx, sess)
		record(sess)
		return nil, newError(KindFatal, sess, "order could not be created, please retry", true, err)
	}

	sess.OrderID = &order.ID
	if err := advance(sess, d.CheckoutStatusSettled); err != nil {
		return nil, err
	}
	s.clearCart(ctx, sess)
	_ = s.save(ctx, sess)
	record(sess)
	logger.FromContext(ctx).Info("checkout settled without card payment",
		"checkout_id", sess.ID, "order_id", order.ID, "payment_mode", sess.PaymentMode)
	return d.ResultFromSession(sess), nil
}

// persistOrder returns the existing order for the intent (or checkout) before inserting a new one.
func (s *SettlementService) persistOrder(ctx context.Context, sess *d.CheckoutSession) (*d.Order, error) {
	existing, err := s.existingOrder(ctx, sess)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	status := d.OrderStatusConfirmed
	if sess.PaymentMode != d.PaymentModeCard {
		status = d.OrderStatusPending
	}
	order := &d.Order{
		ID:              uuid.New(),
		CheckoutID:      sess.ID,
		UserID:          sess.UserID,
		Items:           sess.Snapshot.Clone().Items,
		Address:         sess.Address,
		PaymentMode:     sess.PaymentMode,
		Total:           sess.Amount,
		PaymentIntentID: sess.IntentID,
		ChargeID:        sess.ChargeID,
		Status:          status,
		CreatedAt:       s.now(),
	}

	if _, err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, r.ErrDuplicateOrder) {
			existing, findErr := s.existingOrder(ctx, sess)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func (s *SettlementService) existingOrder(ctx context.Context, sess *d.CheckoutSession) (*d.Order, error) {
	var (
		order *d.Order
		err   error
	)
	if sess.IntentID != nil {
		order, err = s.orders.GetOrderByIntentID(ctx, *sess.IntentID)
	} else {
		order, err = s.orders.GetOrderByCheckoutID(ctx, sess.ID)
	}
	if errors.Is(err, r.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup existing order: %w", err)
	}
	return order, nil
}

// clearCart never fails the settlement; an uncleared cart is picked up by reconciliation.
func (s *SettlementService) clearCart(ctx context.Context, sess *d.CheckoutSession) {
	if err := s.carts.ClearCart(ctx, sess.UserID); err != nil {
		sess.CartCleared = false
		logger.FromContext(ctx).Warn("order settled but cart was not cleared",
			"checkout_id", sess.ID, "user_id", sess.UserID, "error", err)
		return
	}
	sess.CartCleared = true
}

// RetryOrderCreation re-attempts order persistence for a captured payment. It never charges again.
func (s *SettlementService) RetryOrderCreation(ctx context.Context, checkoutID uuid.UUID) (*d.CheckoutResult, error) {
	sess, err := s.loadSession(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if sess.Status == d.CheckoutStatusSettled {
		return d.ResultFromSession(sess), nil
	}
	if sess.Status != d.CheckoutStatusPartiallySettled {
		return nil, validationError(sess, "checkout has no captured payment awaiting an order", ErrNotPartiallySettled)
	}
	chargeID := ""
	if sess.ChargeID != nil {
		chargeID = *sess.ChargeID
	}
	return s.settle(ctx, sess, chargeID)
}
