package domain

import "errors"

var (
	// ErrMissingOrgID is returned when an event has no tenant accessor —
	// a programming error, never a runtime condition callers should handle.
	ErrMissingOrgID = errors.New("outbox: event has no org id")

	// ErrNotOwned is returned by a claim re-assertion that affected zero
	// rows: another instance already owns the event's lock.
	ErrNotOwned = errors.New("outbox: event not owned by this instance")

	// ErrNotPending is logged by the dispatcher when a reloaded row is no
	// longer PENDING.
	ErrNotPending = errors.New("outbox: event no longer pending")
)
