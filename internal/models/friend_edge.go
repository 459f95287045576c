package models

import "time"

// FriendEdge is the edge-table representation of an accepted friendship
// (PostgreSQL). Exactly one row per unordered pair: AccountA always holds the
// smaller ID, so {A,B} and {B,A} hit the same row and mutuality holds by
// construction.
type FriendEdge struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AccountA  string `json:"account_a" gorm:"size:128;not null;uniqueIndex:idx_friend_edge_pair"`
	AccountB  string `json:"account_b" gorm:"size:128;not null;uniqueIndex:idx_friend_edge_pair"`
	CreatedAt time.Time
}

// EnsureCanonicalOrder swaps the endpoints so AccountA < AccountB. Must be
// called before persisting.
func (e *FriendEdge) EnsureCanonicalOrder() {
	if e.AccountA > e.AccountB {
		e.AccountA, e.AccountB = e.AccountB, e.AccountA
	}
}
