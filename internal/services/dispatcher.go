package services

import (
	"context"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"github.com/rafiq-dev/bandmate/backend/internal/repositories"
	"go.uber.org/zap"
)

// NotificationDispatcher fans lifecycle events out to recipient inboxes.
// Fire-and-forget from the caller's perspective: it runs strictly after the
// request record is durable, and its failure never rolls the transition back.
// A missed notification is recoverable (the recipient still sees the pending
// state via the resolver); a missing request record is not.
type NotificationDispatcher struct {
	notifications repositories.NotificationRepository
	accounts      repositories.AccountRepository
	logger        *zap.Logger
}

// NewNotificationDispatcher creates a new NotificationDispatcher
func NewNotificationDispatcher(
	notifications repositories.NotificationRepository,
	accounts repositories.AccountRepository,
	logger *zap.Logger,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifications: notifications,
		accounts:      accounts,
		logger:        logger,
	}
}

// RequestReceived notifies toID that fromID sent them a connection request
func (d *NotificationDispatcher) RequestReceived(ctx context.Context, toID, fromID string) {
	d.dispatch(ctx, &models.Notification{
		Type:        models.NotificationFriendRequest,
		ActorID:     fromID,
		RecipientID: toID,
		Message:     d.actorName(ctx, fromID) + " wants to connect with you",
	})
}

// RequestAccepted notifies the original sender that their request was accepted
func (d *NotificationDispatcher) RequestAccepted(ctx context.Context, toID, fromID string) {
	d.dispatch(ctx, &models.Notification{
		Type:        models.NotificationRequestAccepted,
		ActorID:     fromID,
		RecipientID: toID,
		Message:     d.actorName(ctx, fromID) + " accepted your connection request",
	})
}

// RequestResolved removes the recipient's friend-request notification once
// the request it announced no longer exists (accepted, declined, cancelled,
// or unfriended).
func (d *NotificationDispatcher) RequestResolved(ctx context.Context, recipientID, actorID string) {
	err := d.notifications.DeleteForPair(ctx, recipientID, actorID, models.NotificationFriendRequest)
	if err != nil {
		d.logger.Warn("failed to remove resolved friend-request notification",
			zap.String("recipient_id", recipientID),
			zap.String("actor_id", actorID),
			zap.Error(err),
		)
	}
}

func (d *NotificationDispatcher) dispatch(ctx context.Context, notification *models.Notification) {
	if err := d.notifications.Create(ctx, notification); err != nil {
		d.logger.Warn("failed to dispatch notification",
			zap.String("type", notification.Type),
			zap.String("recipient_id", notification.RecipientID),
			zap.Error(err),
		)
	}
}

func (d *NotificationDispatcher) actorName(ctx context.Context, accountID string) string {
	account, err := d.accounts.GetByID(ctx, accountID)
	if err != nil || account.Name == "" {
		return "A musician"
	}
	return account.Name
}
