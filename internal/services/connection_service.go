package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"github.com/rafiq-dev/bandmate/backend/internal/repositories"
	"go.uber.org/zap"
)

// ConnectionService is the single owner of the friend-request lifecycle:
// send, accept, decline, cancel, unfriend. No other component writes friend
// lists or request records. All successful transitions are published to the
// change feed after they are durable.
type ConnectionService struct {
	requests      repositories.ConnectionRequestRepository
	friends       repositories.FriendListRepository
	accounts      repositories.AccountRepository
	notifications repositories.NotificationRepository
	resolver      *ConnectionResolver
	dispatcher    *NotificationDispatcher
	feed          *ChangeFeed
	logger        *zap.Logger
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(
	requests repositories.ConnectionRequestRepository,
	friends repositories.FriendListRepository,
	accounts repositories.AccountRepository,
	notifications repositories.NotificationRepository,
	resolver *ConnectionResolver,
	dispatcher *NotificationDispatcher,
	feed *ChangeFeed,
	logger *zap.Logger,
) *ConnectionService {
	return &ConnectionService{
		requests:      requests,
		friends:       friends,
		accounts:      accounts,
		notifications: notifications,
		resolver:      resolver,
		dispatcher:    dispatcher,
		feed:          feed,
		logger:        logger,
	}
}

// Resolve returns the relationship between two accounts, viewed from the first
func (s *ConnectionService) Resolve(ctx context.Context, a, b string) (models.ConnectionState, error) {
	return s.resolver.Resolve(ctx, a, b)
}

// Send creates a pending connection request from fromID to toID. The second
// return value reports whether a new request was created: a request already
// pending in either direction, or an existing friendship, resolves as a
// no-op with the surviving request (if any) returned. The guard is "does a
// live pending record exist for this unordered pair", not "from this exact
// sender" — two users clicking connect at the same time must end with one
// record, never two.
func (s *ConnectionService) Send(ctx context.Context, fromID, toID string) (*models.ConnectionRequest, bool, error) {
	if fromID == toID {
		return nil, false, ErrSelfReference
	}

	exists, err := s.accounts.Exists(ctx, toID)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, fmt.Errorf("recipient account %s: %w", toID, ErrNotFound)
	}

	state, err := s.resolver.Resolve(ctx, fromID, toID)
	if err != nil {
		return nil, false, err
	}
	switch state.Status {
	case models.ConnectionFriends:
		return nil, false, nil
	case models.ConnectionPendingOutgoing, models.ConnectionPendingIncoming:
		existing, err := s.requests.GetByID(ctx, state.RequestID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, false, nil
		}
		return existing, false, err
	}

	req := &models.ConnectionRequest{
		ID:     uuid.NewString(),
		FromID: fromID,
		ToID:   toID,
	}
	err = s.requests.Create(ctx, req)
	if errors.Is(err, repositories.ErrDuplicatePair) {
		// Lost the send race: the pair's unique index rejected the insert.
		// The caller only meant "ensure a request exists", so surface the
		// surviving record as a no-op instead of an error.
		existing, getErr := s.requests.GetByPair(ctx, fromID, toID)
		if errors.Is(getErr, repositories.ErrNotFound) {
			return nil, false, nil
		}
		return existing, false, getErr
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("connection request sent",
		zap.String("request_id", req.ID),
		zap.String("from_id", fromID),
		zap.String("to_id", toID),
	)

	// Notification and feed publish run only after the insert is durable;
	// neither can fail the send.
	s.dispatcher.RequestReceived(ctx, toID, fromID)
	s.feed.Publish(fromID, toID, models.ConnectionPendingOutgoing, req.ID)
	return req, true, nil
}

// Accept turns a pending request into a friendship. Only the recipient may
// accept. The two friend-list writes are independent; if the second fails the
// pair is left half-linked and a *PartialFriendshipError is returned — the
// resolver's repair-on-read or the reconciler completes the missing side, so
// the error is recoverable without re-running Accept.
func (s *ConnectionService) Accept(ctx context.Context, requestID, actorID string) error {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ToID != actorID {
		return fmt.Errorf("accept %s by %s: %w", requestID, actorID, ErrUnauthorized)
	}

	if err := s.friends.AddFriend(ctx, req.FromID, req.ToID); err != nil {
		return fmt.Errorf("failed to add %s to %s's friends: %w", req.ToID, req.FromID, mapStoreErr(err))
	}
	if err := s.friends.AddFriend(ctx, req.ToID, req.FromID); err != nil {
		return &PartialFriendshipError{
			Op:            "accept",
			CompletedSide: req.FromID,
			FailedSide:    req.ToID,
			Err:           err,
		}
	}

	// Friendship is durable on both sides; a failed delete leaves a stray
	// pending record that the resolver removes on the next read.
	if err := s.requests.Delete(ctx, requestID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		s.logger.Warn("failed to delete accepted connection request",
			zap.String("request_id", requestID), zap.Error(err))
	}

	s.logger.Info("connection request accepted",
		zap.String("request_id", requestID),
		zap.String("from_id", req.FromID),
		zap.String("to_id", req.ToID),
	)

	s.dispatcher.RequestResolved(ctx, req.ToID, req.FromID)
	s.dispatcher.RequestAccepted(ctx, req.FromID, req.ToID)
	s.feed.Publish(req.FromID, req.ToID, models.ConnectionFriends, "")
	return nil
}

// Decline deletes a pending request. Only the recipient may decline. The
// sender is not notified; the recipient's own friend-request notification is
// removed.
func (s *ConnectionService) Decline(ctx context.Context, requestID, actorID string) error {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ToID != actorID {
		return fmt.Errorf("decline %s by %s: %w", requestID, actorID, ErrUnauthorized)
	}

	if err := s.requests.Delete(ctx, requestID); err != nil {
		return mapStoreErr(err)
	}

	s.logger.Info("connection request declined",
		zap.String("request_id", requestID),
		zap.String("from_id", req.FromID),
		zap.String("to_id", req.ToID),
	)

	s.dispatcher.RequestResolved(ctx, req.ToID, req.FromID)
	s.feed.Publish(req.FromID, req.ToID, models.ConnectionNone, "")
	return nil
}

// Cancel deletes a pending request. Only the sender may cancel.
func (s *ConnectionService) Cancel(ctx context.Context, requestID, actorID string) error {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.FromID != actorID {
		return fmt.Errorf("cancel %s by %s: %w", requestID, actorID, ErrUnauthorized)
	}

	if err := s.requests.Delete(ctx, requestID); err != nil {
		return mapStoreErr(err)
	}

	s.logger.Info("connection request cancelled",
		zap.String("request_id", requestID),
		zap.String("from_id", req.FromID),
		zap.String("to_id", req.ToID),
	)

	s.dispatcher.RequestResolved(ctx, req.ToID, req.FromID)
	s.feed.Publish(req.FromID, req.ToID, models.ConnectionNone, "")
	return nil
}

// Unfriend dissolves a friendship. The actor must be one of the two
// participants. Residual request records and friend-request notifications
// between the pair are cleaned up with it.
func (s *ConnectionService) Unfriend(ctx context.Context, a, b, actorID string) error {
	if actorID != a && actorID != b {
		return fmt.Errorf("unfriend %s/%s by %s: %w", a, b, actorID, ErrUnauthorized)
	}

	state, err := s.resolver.Resolve(ctx, a, b)
	if err != nil {
		return err
	}
	if state.Status != models.ConnectionFriends {
		return fmt.Errorf("%s and %s: %w", a, b, ErrNotFriends)
	}

	if err := s.friends.RemoveFriend(ctx, a, b); err != nil {
		return fmt.Errorf("failed to remove %s from %s's friends: %w", b, a, mapStoreErr(err))
	}
	if err := s.friends.RemoveFriend(ctx, b, a); err != nil {
		// Half-removed: b's list still holds a. Repair-on-read treats the
		// surviving side as authoritative and re-links the pair, so the
		// caller must retry the unfriend.
		return &PartialFriendshipError{
			Op:            "unfriend",
			CompletedSide: a,
			FailedSide:    b,
			Err:           err,
		}
	}

	if _, err := s.requests.DeleteByPair(ctx, a, b); err != nil {
		s.logger.Warn("failed to delete residual request records",
			zap.String("pair_key", models.PairKey(a, b)), zap.Error(err))
	}

	s.logger.Info("friendship dissolved",
		zap.String("account_a", a),
		zap.String("account_b", b),
		zap.String("actor_id", actorID),
	)

	s.dispatcher.RequestResolved(ctx, a, b)
	s.dispatcher.RequestResolved(ctx, b, a)
	s.feed.Publish(a, b, models.ConnectionNone, "")
	return nil
}

// ListFriends returns the account's accepted-friend IDs
func (s *ConnectionService) ListFriends(ctx context.Context, accountID string) ([]string, error) {
	friends, err := s.friends.ListFriends(ctx, accountID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return friends, nil
}

// ListIncoming returns pending requests addressed to the account
func (s *ConnectionService) ListIncoming(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return s.requests.ListIncoming(ctx, accountID)
}

// ListOutgoing returns pending requests sent by the account
func (s *ConnectionService) ListOutgoing(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return s.requests.ListOutgoing(ctx, accountID)
}

// Notifications returns a page of the account's inbox, newest first
func (s *ConnectionService) Notifications(ctx context.Context, accountID string, page, limit int) ([]models.Notification, int64, error) {
	return s.notifications.ListByRecipient(ctx, accountID, page, limit)
}

// UnreadNotificationCount returns the account's unread inbox count
func (s *ConnectionService) UnreadNotificationCount(ctx context.Context, accountID string) (int64, error) {
	return s.notifications.UnreadCount(ctx, accountID)
}

// MarkNotificationRead marks one of the account's own notifications as read
func (s *ConnectionService) MarkNotificationRead(ctx context.Context, accountID, notificationID string) error {
	return mapStoreErr(s.notifications.MarkRead(ctx, accountID, notificationID))
}

// MarkAllNotificationsRead marks the account's whole inbox as read
func (s *ConnectionService) MarkAllNotificationsRead(ctx context.Context, accountID string) error {
	return s.notifications.MarkAllRead(ctx, accountID)
}

func (s *ConnectionService) getRequest(ctx context.Context, requestID string) (*models.ConnectionRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	return req, err
}

// mapStoreErr translates repository sentinels into the service taxonomy
func mapStoreErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
