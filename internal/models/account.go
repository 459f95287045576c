package models

import "time"

// Account represents a musician profile (MongoDB `accounts` collection).
// Only the fields the connection subsystem reads are modelled here; the rest
// of the profile (bio, media, channel) is owned by the profile service.
type Account struct {
	ID          string    `json:"id" bson:"_id"` // Firebase UID
	Name        string    `json:"name" bson:"name"`
	Email       string    `json:"email" bson:"email"`
	Instruments []string  `json:"instruments,omitempty" bson:"instruments,omitempty"`
	Friends     []string  `json:"friends" bson:"friends"` // denormalized accepted-friend IDs
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// AccountCompact is the trimmed view embedded in enriched API responses
type AccountCompact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ToCompact converts an Account to its compact representation
func (a *Account) ToCompact() AccountCompact {
	return AccountCompact{ID: a.ID, Name: a.Name}
}
