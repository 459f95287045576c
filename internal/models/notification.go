package models

import "time"

// Notification types emitted by the connection subsystem
const (
	NotificationFriendRequest   = "friend_request"
	NotificationRequestAccepted = "request_accepted"
)

// Notification represents an inbox item owned by exactly one account
// (PostgreSQL). Created by the sender's lifecycle action, mutated (marked
// read) only by the recipient.
type Notification struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Type        string    `json:"type" gorm:"size:30;index"`
	ActorID     string    `json:"actor_id" gorm:"size:128;index"`
	RecipientID string    `json:"recipient_id" gorm:"size:128;index"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}
