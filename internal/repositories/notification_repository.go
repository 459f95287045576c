package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
	// MarkRead is recipient-scoped: marking a notification that belongs to a
	// different account is ErrNotFound, never a cross-account write.
	MarkRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllRead(ctx context.Context, recipientID string) error
	// DeleteForPair removes the recipient's notifications of the given type
	// from that actor. A resolved request sweeps its own inbox entry.
	DeleteForPair(ctx context.Context, recipientID, actorID, notificationType string) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

// NewPostgresNotificationRepository creates a new Postgres-backed NotificationRepository
func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *postgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ?", recipientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Update("is_read", true).Error
}

func (r *postgresNotificationRepository) DeleteForPair(ctx context.Context, recipientID, actorID, notificationType string) error {
	return r.db.WithContext(ctx).
		Where("recipient_id = ? AND actor_id = ? AND type = ?", recipientID, actorID, notificationType).
		Delete(&models.Notification{}).Error
}
