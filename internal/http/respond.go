package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/settlement-service/internal/service"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Default().Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondSettlementError maps the settlement error taxonomy onto HTTP statuses.
func respondSettlementError(ctx context.Context, w http.ResponseWriter, err error) {
	var se *service.SettlementError
	if !errors.As(err, &se) {
		logger.FromContext(ctx).Error("unclassified checkout error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := ErrorResponse{Error: se.Reason, Retryable: se.Retryable}
	status := http.StatusInternalServerError
	switch se.Kind {
	case service.KindValidation:
		status, resp.Code = http.StatusBadRequest, "validation_failed"
		switch {
		case errors.Is(err, service.ErrCheckoutNotFound):
			status, resp.Code = http.StatusNotFound, "checkout_not_found"
		case errors.Is(err, service.ErrCheckoutInProgress):
			status, resp.Code = http.StatusConflict, "checkout_in_progress"
		case errors.Is(err, service.ErrNotAwaitingPayment), errors.Is(err, service.ErrNotPartiallySettled):
			status, resp.Code = http.StatusConflict, "invalid_checkout_state"
		}
		if se.Err != nil {
			resp.Details = se.Err.Error()
		}
	case service.KindDeclined:
		status, resp.Code = http.StatusPaymentRequired, "payment_declined"
	case service.KindGatewayUnavailable:
		status, resp.Code = http.StatusServiceUnavailable, "gateway_unavailable"
	case service.KindPartialSettlement:
		status, resp.Code = http.StatusInternalServerError, "payment_captured_order_pending"
	default:
		resp.Code = "checkout_failed"
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).Error("checkout failed", "kind", se.Kind, "checkout_id", se.CheckoutID, "error", err)
	}
	respondJSON(w, status, resp)
}
