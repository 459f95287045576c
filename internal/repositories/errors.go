package repositories

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicatePair is returned by ConnectionRequestRepository.Create when
	// a pending request already exists for the same unordered account pair,
	// in either direction. Callers treat it as losing the send race.
	ErrDuplicatePair = errors.New("pending request already exists for pair")
)
