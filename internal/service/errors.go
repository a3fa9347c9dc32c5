package service

import (
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/google/uuid"
)

var (
	ErrMissingIdempotencyKey  = errors.New("idempotency key is required")
	ErrMissingUser            = errors.New("user id is required")
	ErrUnsupportedPaymentMode = errors.New("unsupported payment mode")
	ErrInvalidAmount          = errors.New("checkout amount must be positive")
	ErrCheckoutInProgress     = errors.New("another checkout is in progress for this user")
	ErrCheckoutNotFound       = errors.New("checkout not found")
	ErrNotAwaitingPayment     = errors.New("checkout is not awaiting payment confirmation")
	ErrNotPartiallySettled    = errors.New("checkout has no captured payment awaiting an order")
	ErrIllegalTransition      = errors.New("illegal transition of checkout status")
)

type ErrorKind string

const (
	// KindValidation: bad input, the user corrects it. Nothing was mutated.
	KindValidation ErrorKind = "VALIDATION"
	// KindGatewayUnavailable: transport failure or timeout, retry from the last safe state.
	KindGatewayUnavailable ErrorKind = "GATEWAY_UNAVAILABLE"
	// KindDeclined: the gateway refused the card. No order, cart untouched.
	KindDeclined ErrorKind = "DECLINED"
	// KindPartialSettlement: the customer was charged but the order is not recorded yet.
	KindPartialSettlement ErrorKind = "PARTIAL_SETTLEMENT"
	// KindFatal: unexpected failure, the attempt is aborted.
	KindFatal ErrorKind = "FATAL"
)

// SettlementError is returned by every SettlementService operation that fails.
type SettlementError struct {
	Kind       ErrorKind
	CheckoutID uuid.UUID
	Status     d.CheckoutStatus
	Reason     string
	Retryable  bool
	Err        error
}

func (e *SettlementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// KindOf returns the settlement error kind of err, or KindFatal for foreign errors.
func KindOf(err error) ErrorKind {
	var se *SettlementError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindFatal
}

func validationError(sess *d.CheckoutSession, reason string, err error) *SettlementError {
	return newError(KindValidation, sess, reason, false, err)
}

func newError(kind ErrorKind, sess *d.CheckoutSession, reason string, retryable bool, err error) *SettlementError {
	se := &SettlementError{Kind: kind, Reason: reason, Retryable: retryable, Err: err}
	if sess != nil {
		se.CheckoutID = sess.ID
		se.Status = sess.Status
	}
	return se
}
