package http

import (
	"context"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/pricing"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
)

// CartPreviewer returns the caller's cart for display. The result may be cached.
type CartPreviewer interface {
	Preview(ctx context.Context, userID string) (d.CartSnapshot, error)
}

// Quoter prices a cart the way checkout will.
type Quoter interface {
	Subtotal(snapshot d.CartSnapshot) (d.Money, error)
	Total(snapshot d.CartSnapshot) (d.Money, error)
}

type CartHandler struct {
	carts   CartPreviewer
	quotes  Quoter
	timeout time.Duration
}

func NewCartHandler(carts CartPreviewer, quotes Quoter, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, quotes: quotes, timeout: timeout}
}

type CartLineDTO struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

// CartPreviewDTO carries amounts as major-unit strings. Total is omitted for an empty cart,
// which cannot be checked out.
type CartPreviewDTO struct {
	Items    []CartLineDTO `json:"items"`
	Currency string        `json:"currency"`
	Subtotal string        `json:"subtotal"`
	Total    string        `json:"total,omitempty"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	snapshot, err := h.carts.Preview(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load cart", "user_id", userID, "error", err)
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be loaded")
		return
	}

	preview, err := h.quote(snapshot)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "cart_unpriceable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

func (h *CartHandler) quote(snapshot d.CartSnapshot) (*CartPreviewDTO, error) {
	preview := &CartPreviewDTO{Items: make([]CartLineDTO, 0, len(snapshot.Items)), Currency: snapshot.Currency}
	for _, it := range snapshot.Items {
		price, err := pricing.FormatMajor(d.Money{Amount: it.UnitPrice, Currency: snapshot.Currency})
		if err != nil {
			return nil, err
		}
		preview.Items = append(preview.Items, CartLineDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   price,
		})
	}

	if snapshot.IsEmpty() {
		var err error
		preview.Subtotal, err = pricing.FormatMajor(d.Money{Currency: snapshot.Currency})
		return preview, err
	}

	subtotal, err := h.quotes.Subtotal(snapshot)
	if err != nil {
		return nil, err
	}
	if preview.Subtotal, err = pricing.FormatMajor(subtotal); err != nil {
		return nil, err
	}
	total, err := h.quotes.Total(snapshot)
	if err != nil {
		return nil, err
	}
	if preview.Total, err = pricing.FormatMajor(total); err != nil {
		return nil, err
	}
	return preview, nil
}
