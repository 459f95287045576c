package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rafiq-dev/bandmate/backend/internal/repositories"
	"go.uber.org/zap"
)

// Reconciler is the background safety net for the non-atomic dual writes:
// it sweeps every account's friend list, completes one-sided memberships and
// deletes pending requests between accounts that are already friends. The
// same repairs happen opportunistically on reads; the sweep catches pairs
// nobody is reading.
type Reconciler struct {
	requests repositories.ConnectionRequestRepository
	friends  repositories.FriendListRepository
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// ReconcileReport summarizes one sweep
type ReconcileReport struct {
	AccountsScanned int
	ListsRepaired   int
	StaleRequests   int
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	requests repositories.ConnectionRequestRepository,
	friends repositories.FriendListRepository,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{requests: requests, friends: friends, logger: logger}
}

// RunOnce performs a single reconciliation sweep
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	accountIDs, err := r.friends.ListAccountIDs(ctx)
	if err != nil {
		return report, err
	}

	for _, accountID := range accountIDs {
		report.AccountsScanned++

		friendIDs, err := r.friends.ListFriends(ctx, accountID)
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, err
		}

		for _, friendID := range friendIDs {
			reciprocal, err := r.friends.Contains(ctx, friendID, accountID)
			if err != nil {
				return report, err
			}
			if !reciprocal {
				if err := r.friends.AddFriend(ctx, friendID, accountID); err != nil {
					r.logger.Warn("sweep failed to repair one-sided friendship",
						zap.String("account_id", friendID),
						zap.String("friend_id", accountID),
						zap.Error(err),
					)
					continue
				}
				report.ListsRepaired++
				r.logger.Warn("sweep repaired one-sided friendship",
					zap.String("completed_side", accountID),
					zap.String("repaired_side", friendID),
				)
			}

			// Friends must not also have a live pending request.
			req, err := r.requests.GetByPair(ctx, accountID, friendID)
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			if err != nil {
				return report, err
			}
			if err := r.requests.Delete(ctx, req.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
				r.logger.Warn("sweep failed to delete stale request",
					zap.String("request_id", req.ID), zap.Error(err))
				continue
			}
			report.StaleRequests++
		}
	}

	if report.ListsRepaired > 0 || report.StaleRequests > 0 {
		r.logger.Info("reconciliation sweep found work",
			zap.Int("accounts_scanned", report.AccountsScanned),
			zap.Int("lists_repaired", report.ListsRepaired),
			zap.Int("stale_requests", report.StaleRequests),
		)
	}
	return report, nil
}

// Start launches the periodic sweep. No-op if already running.
func (r *Reconciler) Start(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					r.logger.Error("reconciliation sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop halts the periodic sweep and waits for the current one to finish
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
