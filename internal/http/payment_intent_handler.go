package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	"github.com/fjod/go_cart/settlement-service/internal/service"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentIntentHandler serves the storefront's original intent route. Its request and response
// bodies are kept byte-compatible with existing clients.
type PaymentIntentHandler struct {
	issuer   service.IntentIssuer
	currency string
	timeout  time.Duration
}

func NewPaymentIntentHandler(issuer service.IntentIssuer, currency string, timeout time.Duration) *PaymentIntentHandler {
	return &PaymentIntentHandler{issuer: issuer, currency: currency, timeout: timeout}
}

type createIntentRequest struct {
	Amount json.Number `json:"amount"`
}

type createIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type legacyError struct {
	Error string `json:"error"`
}

// POST /create-payment-intent
// amount is in minor units of the configured currency; a fractional value is rounded half-up.
func (h *PaymentIntentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	amount, ok := h.parseAmount(r)
	if !ok {
		respondJSON(w, http.StatusBadRequest, legacyError{Error: "Invalid amount"})
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		key = uuid.NewString()
	}

	intent, err := h.issuer.CreateIntent(ctx, amount, key)
	if errors.Is(err, gateway.ErrInvalidAmount) {
		respondJSON(w, http.StatusBadRequest, legacyError{Error: "Invalid amount"})
		return
	}
	if err != nil {
		logger.FromContext(ctx).Error("error creating payment intent", "amount", amount.String(), "error", err)
		respondJSON(w, http.StatusInternalServerError, legacyError{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, createIntentResponse{ClientSecret: intent.ClientSecret})
}

func (h *PaymentIntentHandler) parseAmount(r *http.Request) (d.Money, bool) {
	var req createIntentRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil || req.Amount == "" {
		return d.Money{}, false
	}
	minor, err := decimal.NewFromString(req.Amount.String())
	if err != nil || !minor.IsPositive() {
		return d.Money{}, false
	}
	minor = minor.Round(0)
	if !minor.IsPositive() || minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return d.Money{}, false
	}
	m, err := d.NewMoney(minor.IntPart(), h.currency)
	if err != nil {
		return d.Money{}, false
	}
	return m, true
}
