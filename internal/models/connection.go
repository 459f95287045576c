package models

import "time"

// Connection request status values. Accepted/declined/cancelled records are
// deleted on transition, so persisted requests are always pending; the other
// values only ever appear in change-feed events and API responses.
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusDeclined  = "declined"
	RequestStatusCancelled = "cancelled"
)

// ConnectionRequest represents an in-flight friend-request negotiation
// between two accounts (MongoDB `connection_requests` collection).
type ConnectionRequest struct {
	ID        string    `json:"id" bson:"_id"`
	FromID    string    `json:"from_id" bson:"from_id"`
	ToID      string    `json:"to_id" bson:"to_id"`
	PairKey   string    `json:"-" bson:"pair_key"` // canonical unordered-pair key, unique-indexed
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Other returns the participant that is not accountID. Returns "" when
// accountID is not a participant.
func (r *ConnectionRequest) Other(accountID string) string {
	switch accountID {
	case r.FromID:
		return r.ToID
	case r.ToID:
		return r.FromID
	}
	return ""
}

// PairKey builds the canonical key for an unordered account pair, so that
// {A,B} and {B,A} map to the same value.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "#" + b
}

// ConnectionStatus is the effective relationship between two accounts as seen
// from one side.
type ConnectionStatus string

const (
	ConnectionNone            ConnectionStatus = "none"
	ConnectionPendingOutgoing ConnectionStatus = "pending_outgoing"
	ConnectionPendingIncoming ConnectionStatus = "pending_incoming"
	ConnectionFriends         ConnectionStatus = "friends"
)

// ConnectionState is the resolver's answer for a pair, viewed from the first
// account passed to Resolve. RequestID is set only for the pending states.
type ConnectionState struct {
	Status    ConnectionStatus `json:"status"`
	RequestID string           `json:"request_id,omitempty"`
}

// ConnectionEvent is a change-feed item: a state transition (or the initial
// snapshot) for an unordered account pair.
type ConnectionEvent struct {
	PairKey    string           `json:"pair_key"`
	AccountA   string           `json:"account_a"`
	AccountB   string           `json:"account_b"`
	Status     ConnectionStatus `json:"status"`
	RequestID  string           `json:"request_id,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// SendConnectionRequest defines the request body for sending a connection request
type SendConnectionRequest struct {
	ToID string `json:"to_id" validate:"required"`
}
