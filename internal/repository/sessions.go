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

const sessionColumns = `id, user_id, idempotency_key, status, payment_mode, cart_snapshot, address,
	customer_name, customer_email, amount, currency, intent_id, client_secret, charge_id, order_id,
	failure_reason, cart_cleared, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) CreateCheckoutSession(ctx context.Context, s *d.CheckoutSession) error {
	snapshotJSON, err := json.Marshal(s.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}
	addressJSON, err := json.Marshal(s.Address)
	if err != nil {
		return fmt.Errorf("failed to marshal address: %w", err)
	}

	now := time.Now().UTC()
	query := `INSERT INTO checkout_sessions (id, user_id, idempotency_key, status, payment_mode, cart_snapshot,
	          address, customer_name, customer_email, amount, currency, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.IdempotencyKey,
		s.Status,
		s.PaymentMode,
		snapshotJSON,
		addressJSON,
		s.CustomerName,
		s.CustomerEmail,
		s.Amount.Amount,
		s.Amount.Currency,
		now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateSession
		}
		return fmt.Errorf("insert checkout session: %w", err)
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// UpdateCheckoutSession persists the mutable fields of a session.
func (r *Repository) UpdateCheckoutSession(ctx context.Context, s *d.CheckoutSession) error {
	query := `UPDATE checkout_sessions
	          SET status = $2, intent_id = $3, client_secret = $4, charge_id = $5, order_id = $6,
	              failure_reason = $7, cart_cleared = $8, updated_at = NOW()
	          WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Status,
		s.IntentID,
		s.ClientSecret,
		s.ChargeID,
		s.OrderID,
		s.FailureReason,
		s.CartCleared)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checkout session rows: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Repository) GetCheckoutSession(ctx context.Context, id uuid.UUID) (*d.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM checkout_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// GetCheckoutSessionByIdempotencyKey finds userID's attempt for key. Keys of other users never match.
func (r *Repository) GetCheckoutSessionByIdempotencyKey(ctx context.Context, userID, key string) (*d.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM checkout_sessions
	          WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	return s, err
}

// GetSessionsByStatus returns sessions in status last touched before olderThan, oldest first.
func (r *Repository) GetSessionsByStatus(ctx context.Context, status d.CheckoutStatus, olderThan time.Time, limit int) ([]*d.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions
	          WHERE status = $1 AND updated_at < $2 ORDER BY updated_at LIMIT $3`
	return r.querySessions(ctx, query, status, olderThan, limit)
}

// GetUnclearedSettledSessions returns settled sessions whose cart was not cleared.
func (r *Repository) GetUnclearedSettledSessions(ctx context.Context, limit int) ([]*d.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions
	          WHERE status = $1 AND cart_cleared = FALSE ORDER BY updated_at LIMIT $2`
	return r.querySessions(ctx, query, d.CheckoutStatusSettled, limit)
}

func (r *Repository) querySessions(ctx context.Context, query string, args ...any) ([]*d.CheckoutSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkout sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*d.CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*d.CheckoutSession, error) {
	var s d.CheckoutSession
	var snapshotJSON, addressJSON []byte
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.IdempotencyKey,
		&s.Status,
		&s.PaymentMode,
		&snapshotJSON,
		&addressJSON,
		&s.CustomerName,
		&s.CustomerEmail,
		&s.Amount.Amount,
		&s.Amount.Currency,
		&s.IntentID,
		&s.ClientSecret,
		&s.ChargeID,
		&s.OrderID,
		&s.FailureReason,
		&s.CartCleared,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}
	if err := json.Unmarshal(snapshotJSON, &s.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &s.Address); err != nil {
		return nil, fmt.Errorf("unmarshal address: %w", err)
	}
	return &s, nil
}
