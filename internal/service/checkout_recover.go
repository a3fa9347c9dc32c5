package service

import (
	"context"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
)

// RecoverPartialSettlements retries order creation for captured payments older than minAge.
func (s *SettlementService) RecoverPartialSettlements(ctx context.Context, minAge time.Duration, limit int) (int, error) {
	sessions, err := s.sessions.GetSessionsByStatus(ctx, d.CheckoutStatusPartiallySettled, s.now().Add(-minAge), limit)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, sess := range sessions {
		if _, err := s.RetryOrderCreation(ctx, sess.ID); err != nil {
			logger.FromContext(ctx).Warn("partial settlement still pending", "checkout_id", sess.ID, "error", err)
			continue
		}
		recovered++
	}
	return recovered, nil
}

// staleStatuses are the awaiting states in which money can move without this service seeing it:
// a confirm call that timed out, a client-side SDK confirmation, or a challenge completed after the
// customer left.
var staleStatuses = []d.CheckoutStatus{
	d.CheckoutStatusConfirming,
	d.CheckoutStatusIntentIssued,
	d.CheckoutStatusActionRequired,
}

// ResolveStaleConfirmations asks the gateway about attempts left awaiting payment for longer than
// minAge and records what it reports. Attempts the gateway has no outcome for are left alone.
func (s *SettlementService) ResolveStaleConfirmations(ctx context.Context, minAge time.Duration, limit int) (int, error) {
	resolved := 0
	for _, status := range staleStatuses {
		sessions, err := s.sessions.GetSessionsByStatus(ctx, status, s.now().Add(-minAge), limit)
		if err != nil {
			return resolved, err
		}
		for _, sess := range sessions {
			if s.resolveStale(ctx, sess) {
				resolved++
			}
		}
	}
	return resolved, nil
}

func (s *SettlementService) resolveStale(ctx context.Context, stale *d.CheckoutSession) bool {
	log := logger.FromContext(ctx).With("checkout_id", stale.ID, "status", stale.Status)
	if stale.IntentID == nil {
		return false
	}

	release, err := s.acquire(ctx, stale.UserID)
	if err != nil {
		log.Debug("stale attempt is busy, skipping", "error", err)
		return false
	}
	defer release()

	// Reload under the lock: a live request may have moved the attempt since the scan.
	sess, err := s.loadSession(ctx, stale.ID)
	if err != nil || sess.Status != stale.Status {
		return false
	}

	verdict, err := s.confirmer.Lookup(ctx, *sess.IntentID)
	if err != nil {
		log.Warn("stale attempt lookup failed", "error", err)
		return false
	}
	switch verdict.Outcome {
	case d.VerdictSucceeded, d.VerdictDeclined, d.VerdictError:
		_, _ = s.resolve(ctx, sess, verdict)
		log.Info("stale attempt resolved", "outcome", verdict.Outcome, "now", sess.Status)
		return true
	case d.VerdictRequiresAction:
		if sess.Status != d.CheckoutStatusActionRequired {
			_, _ = s.resolve(ctx, sess, verdict)
			return true
		}
	}

	// Touch the attempt so the oldest-first scan rotates past it.
	// TODO: cancel intents still unconfirmed after a day so abandoned attempts can reach ABORTED.
	if err := s.save(ctx, sess); err != nil {
		log.Warn("stale attempt could not be touched", "error", err)
	}
	return false
}

// ClearSettledCarts retries cart clearing for settled attempts whose clear failed. A cart the user
// changed after settlement holds new items and is left alone.
func (s *SettlementService) ClearSettledCarts(ctx context.Context, limit int) (int, error) {
	sessions, err := s.sessions.GetUnclearedSettledSessions(ctx, limit)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, sess := range sessions {
		if err := s.carts.ClearCartIfUnchanged(ctx, sess.UserID, sess.UpdatedAt); err != nil {
			logger.FromContext(ctx).Warn("cart clear retry failed", "checkout_id", sess.ID, "error", err)
			continue
		}
		sess.CartCleared = true
		if err := s.save(ctx, sess); err == nil {
			cleared++
		}
	}
	return cleared, nil
}
