package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	r "github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*d.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(req.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersByUserID(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list orders", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "orders could not be loaded")
		return
	}
	if orders == nil {
		orders = []*d.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{orderID}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(req.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, err := uuid.Parse(chi.URLParam(req, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, id)
	if errors.Is(err, r.ErrOrderNotFound) || (err == nil && order.UserID != userID) {
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to load order", "order_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "order could not be loaded")
		return
	}
	respondJSON(w, http.StatusOK, order)
}
