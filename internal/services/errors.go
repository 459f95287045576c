package services

import (
	"errors"
	"fmt"
)

var (
	// ErrSelfReference is returned when an account tries to connect to itself
	ErrSelfReference = errors.New("cannot send a connection request to yourself")

	// ErrNotFound is returned when a request, account, or notification does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the acting account is not permitted to
	// perform the transition (wrong side of the request, or not a participant)
	ErrUnauthorized = errors.New("account not authorized for this action")

	// ErrNotFriends is returned by Unfriend when the pair is not currently friends
	ErrNotFriends = errors.New("accounts are not friends")
)

// PartialFriendshipError reports that one of the two friend-list writes in an
// accept or unfriend committed and the other failed, leaving the pair
// half-linked. The completed half must not be re-applied wholesale; the
// resolver's repair-on-read (or the reconciler sweep) finishes the missing
// side instead.
type PartialFriendshipError struct {
	Op            string // "accept" or "unfriend"
	CompletedSide string // account whose list was written
	FailedSide    string // account whose list write failed
	Err           error
}

func (e *PartialFriendshipError) Error() string {
	return fmt.Sprintf("%s partially applied: %s updated, %s failed: %v",
		e.Op, e.CompletedSide, e.FailedSide, e.Err)
}

func (e *PartialFriendshipError) Unwrap() error { return e.Err }
