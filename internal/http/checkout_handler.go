package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/cart"
	"github.com/fjod/go_cart/settlement-service/internal/service"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// CartSnapshotter freezes the caller's live cart.
type CartSnapshotter interface {
	Snapshot(ctx context.Context, userID string) (d.CartSnapshot, error)
}

type CheckoutHandler struct {
	checkout service.CheckoutService
	carts    CartSnapshotter
	currency string
	timeout  time.Duration
}

func NewCheckoutHandler(checkout service.CheckoutService, carts CartSnapshotter, currency string, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		carts:    carts,
		currency: currency,
		timeout:  timeout,
	}
}

type CheckoutRequestDTO struct {
	IdempotencyKey string            `json:"idempotency_key"`
	Address        d.ShippingAddress `json:"address"`
	PaymentMode    string            `json:"payment_mode"`
	Card           d.CardInput       `json:"card"`
	CustomerName   string            `json:"customer_name"`
	CustomerEmail  string            `json:"customer_email"`
}

type ConfirmRequestDTO struct {
	Card d.CardInput `json:"card"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key", "idempotency_key is required")
		return
	}

	snapshot, err := h.carts.Snapshot(ctx, userID)
	if errors.Is(err, cart.ErrCartNotFound) {
		snapshot = d.NewCartSnapshot(nil, h.currency, time.Now().UTC())
	} else if err != nil {
		logger.FromContext(ctx).Error("failed to read cart", "user_id", userID, "error", err)
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be read, please retry")
		return
	}

	res, err := h.checkout.Checkout(ctx, &d.CheckoutRequest{
		UserID:         userID,
		IdempotencyKey: key,
		Address:        req.Address,
		PaymentMode:    d.PaymentMode(strings.ToUpper(strings.TrimSpace(req.PaymentMode))),
		Card:           req.Card,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		Snapshot:       snapshot,
	})
	if err != nil {
		respondSettlementError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if stillPaying(res.Status) {
		status = http.StatusAccepted
	}
	respondJSON(w, status, res)
}

// GET /api/v1/checkout/{checkoutID}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := h.ownedCheckout(ctx, w, r)
	if !ok {
		return
	}
	res, err := h.checkout.GetCheckout(ctx, id)
	if err != nil {
		respondSettlementError(ctx, w, err)
		return
	}
	res.ClientSecret = nil
	respondJSON(w, http.StatusOK, res)
}

// POST /api/v1/checkout/{checkoutID}/confirm
func (h *CheckoutHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := h.ownedCheckout(ctx, w, r)
	if !ok {
		return
	}
	var req ConfirmRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	res, err := h.checkout.ConfirmPayment(ctx, id, req.Card)
	if err != nil {
		respondSettlementError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if stillPaying(res.Status) {
		status = http.StatusAccepted
	}
	respondJSON(w, status, res)
}

// POST /api/v1/checkout/{checkoutID}/order
func (h *CheckoutHandler) RetryOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := h.ownedCheckout(ctx, w, r)
	if !ok {
		return
	}
	res, err := h.checkout.RetryOrderCreation(ctx, id)
	if err != nil {
		respondSettlementError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ownedCheckout parses the checkout id and hides attempts that belong to other users.
func (h *CheckoutHandler) ownedCheckout(ctx context.Context, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "checkoutID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_checkout_id", "checkout id must be a UUID")
		return uuid.Nil, false
	}
	res, err := h.checkout.GetCheckout(ctx, id)
	if err != nil {
		respondSettlementError(ctx, w, err)
		return uuid.Nil, false
	}
	if res.UserID != userID {
		respondError(w, http.StatusNotFound, "checkout_not_found", "checkout not found")
		return uuid.Nil, false
	}
	return id, true
}

// stillPaying reports an attempt whose payment outcome is not known yet.
func stillPaying(status d.CheckoutStatus) bool {
	switch status {
	case d.CheckoutStatusIntentIssued, d.CheckoutStatusConfirming, d.CheckoutStatusActionRequired:
		return true
	}
	return false
}
