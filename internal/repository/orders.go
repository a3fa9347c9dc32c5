package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const EventTypeOrderPlaced = "order.placed"

const orderColumns = `id, checkout_id, user_id, items, address, payment_mode, total_amount, currency,
	payment_intent_id, charge_id, status, created_at`

// CreateOrder inserts the order and its order.placed outbox event in one transaction.
func (r *Repository) CreateOrder(ctx context.Context, order *d.Order) (uuid.UUID, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.Address)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal order address: %w", err)
	}
	payloadJSON, err := json.Marshal(orderPlacedPayload(order))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal order event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin order tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO orders (id, checkout_id, user_id, items, address, payment_mode, total_amount,
	          currency, payment_intent_id, charge_id, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.CheckoutID,
		order.UserID,
		itemsJSON,
		addressJSON,
		order.PaymentMode,
		order.Total.Amount,
		order.Total.Currency,
		order.PaymentIntentID,
		order.ChargeID,
		order.Status,
		order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return uuid.Nil, ErrDuplicateOrder
		}
		return uuid.Nil, fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		order.ID.String(), EventTypeOrderPlaced, payloadJSON)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit order tx: %w", err)
	}
	return order.ID, nil
}

func orderPlacedPayload(order *d.Order) map[string]any {
	return map[string]any{
		"order_id":          order.ID,
		"checkout_id":       order.CheckoutID,
		"user_id":           order.UserID,
		"items":             order.Items,
		"payment_mode":      order.PaymentMode,
		"total_amount":      order.Total.Amount,
		"currency":          order.Total.Currency,
		"payment_intent_id": order.PaymentIntentID,
		"created_at":        order.CreatedAt,
	}
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *Repository) GetOrderByIntentID(ctx context.Context, intentID string) (*d.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, intentID)
}

func (r *Repository) GetOrderByCheckoutID(ctx context.Context, checkoutID uuid.UUID) (*d.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_id = $1`, checkoutID)
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*d.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*d.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) getOrder(ctx context.Context, query string, arg any) (*d.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func scanOrder(row rowScanner) (*d.Order, error) {
	var order d.Order
	var itemsJSON, addressJSON []byte
	err := row.Scan(
		&order.ID,
		&order.CheckoutID,
		&order.UserID,
		&itemsJSON,
		&addressJSON,
		&order.PaymentMode,
		&order.Total.Amount,
		&order.Total.Currency,
		&order.PaymentIntentID,
		&order.ChargeID,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.Address); err != nil {
		return nil, fmt.Errorf("unmarshal order address: %w", err)
	}
	return &order, nil
}
