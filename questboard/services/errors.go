package services

import "errors"

// Failure taxonomy surfaced to transport layers. Handlers map these onto
// status codes; nothing here is retried internally.
var (
	// ErrStoreUnavailable wraps any storage failure. Callers should degrade
	// (empty quest board) rather than crash.
	ErrStoreUnavailable = errors.New("quest store unavailable")

	// ErrAlreadyCompletedOrNotFound is the expected outcome when two clients
	// race to complete the same quest, or the quest id is unknown.
	ErrAlreadyCompletedOrNotFound = errors.New("quest already completed or not found")

	// ErrValidation covers malformed or missing identifiers, rejected before
	// any store round trip.
	ErrValidation = errors.New("invalid request")
)
