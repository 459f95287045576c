package services

import (
	"context"
	"errors"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"github.com/rafiq-dev/bandmate/backend/internal/repositories"
	"go.uber.org/zap"
)

// ConnectionResolver computes the effective relationship between two
// accounts. The friend list is authoritative for the terminal state: a stray
// pending request left behind by a partial accept must never override
// friendship. Reads self-heal the two transient inconsistencies this design
// can produce: a one-sided friend list (repair-on-read) and a stale pending
// record alongside a friendship (friends-wins cleanup).
type ConnectionResolver struct {
	requests repositories.ConnectionRequestRepository
	friends  repositories.FriendListRepository
	logger   *zap.Logger
}

// NewConnectionResolver creates a new ConnectionResolver
func NewConnectionResolver(
	requests repositories.ConnectionRequestRepository,
	friends repositories.FriendListRepository,
	logger *zap.Logger,
) *ConnectionResolver {
	return &ConnectionResolver{requests: requests, friends: friends, logger: logger}
}

// Resolve returns the relationship between a and b, viewed from a
func (r *ConnectionResolver) Resolve(ctx context.Context, a, b string) (models.ConnectionState, error) {
	aHasB, err := r.friends.Contains(ctx, a, b)
	if err != nil {
		return models.ConnectionState{}, err
	}
	bHasA, err := r.friends.Contains(ctx, b, a)
	if err != nil {
		return models.ConnectionState{}, err
	}

	if aHasB || bHasA {
		if aHasB != bHasA {
			if err := r.repairMutuality(ctx, a, b, aHasB); err != nil {
				return models.ConnectionState{}, err
			}
		}
		r.cleanStaleRequest(ctx, a, b)
		return models.ConnectionState{Status: models.ConnectionFriends}, nil
	}

	req, err := r.requests.GetByPair(ctx, a, b)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.ConnectionState{Status: models.ConnectionNone}, nil
	}
	if err != nil {
		return models.ConnectionState{}, err
	}

	state := models.ConnectionState{RequestID: req.ID}
	if req.FromID == a {
		state.Status = models.ConnectionPendingOutgoing
	} else {
		state.Status = models.ConnectionPendingIncoming
	}
	return state, nil
}

// repairMutuality completes the missing half of a one-sided friendship. The
// membership writes are idempotent, so repairing a race that another reader
// already fixed is harmless.
func (r *ConnectionResolver) repairMutuality(ctx context.Context, a, b string, aHasB bool) error {
	// aHasB means a's list already holds b, so b's list is the missing side
	present, missing := a, b
	if !aHasB {
		present, missing = b, a
	}
	if err := r.friends.AddFriend(ctx, missing, present); err != nil {
		return &PartialFriendshipError{
			Op:            "repair",
			CompletedSide: present,
			FailedSide:    missing,
			Err:           err,
		}
	}
	r.logger.Warn("repaired one-sided friendship",
		zap.String("completed_side", present),
		zap.String("repaired_side", missing),
	)
	return nil
}

// cleanStaleRequest deletes a pending request that lingers after the pair
// became friends. Best effort: a failure here leaves a record the next read
// or the reconciler will remove.
func (r *ConnectionResolver) cleanStaleRequest(ctx context.Context, a, b string) {
	req, err := r.requests.GetByPair(ctx, a, b)
	if err != nil {
		return
	}
	if err := r.requests.Delete(ctx, req.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		r.logger.Warn("failed to delete stale connection request",
			zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	r.logger.Warn("deleted stale connection request for friended pair",
		zap.String("request_id", req.ID),
		zap.String("pair_key", models.PairKey(a, b)),
	)
}
