package domain

import (
	"context"
	"time"

	"accessctl/internal/common/types"
)

// Repository is the storage contract for outbox events. Append enlists in
// the caller's ambient transaction; the remaining methods back the
// dispatcher's claim/process/release lifecycle.
type Repository interface {
	// Append inserts a PENDING event row. Must run inside the caller's
	// transaction — a failure here aborts the use case, since delivery is
	// part of its correctness.
	Append(ctx context.Context, event *Event) error

	// ClaimBatch selects up to limit ready rows (PENDING, due, unlocked or
	// lock-expired) and stamps them lockedAtUtc=now/lockedBy=instanceID in a
	// single short transaction using row-level skip-locked semantics so
	// concurrent instances never contend. Returns the claimed ids.
	ClaimBatch(ctx context.Context, now time.Time, lockTTL time.Duration, limit int, instanceID string) ([]types.EventID, error)

	// Reload fetches one event row by id, scoped to no particular org since
	// the dispatcher operates across tenants.
	Reload(ctx context.Context, id types.EventID) (*Event, error)

	// ReassertOwnership re-stamps the lock atomically, succeeding only if
	// the row is still PENDING and either already owned by instanceID or
	// lock-expired/absent. Returns ErrNotOwned if the CAS affected no rows.
	ReassertOwnership(ctx context.Context, id types.EventID, now time.Time, lockTTL time.Duration, instanceID string) error

	// Save persists the event's terminal or rescheduled state after a
	// publish attempt (status, attempts, nextAttemptAt, lastError).
	Save(ctx context.Context, event *Event) error

	// ReleaseLock clears lockedAtUtc/lockedBy, but only if still owned by
	// instanceID — the "finally" step of the per-event phase.
	ReleaseLock(ctx context.Context, id types.EventID, instanceID string) error

	// ReleaseExpiredLocks clears locks on PENDING rows whose lock predates
	// now-lockTTL. Used by the maintenance loop to recover from crashes.
	// Returns the number of rows released.
	ReleaseExpiredLocks(ctx context.Context, now time.Time, lockTTL time.Duration) (int, error)

	// CountByStatus returns counts for observability (readiness probe,
	// gauges): pending-ready, pending-inflight, failed.
	CountByStatus(ctx context.Context, now time.Time, lockTTL time.Duration) (Counts, error)

	// OldestAges returns the age of the oldest ready and oldest inflight
	// PENDING rows, for the oldest-age gauges.
	OldestAges(ctx context.Context, now time.Time, lockTTL time.Duration) (Ages, error)
}

// Counts summarizes outbox state for metrics and the readiness probe.
type Counts struct {
	Ready    int
	Inflight int
	Failed   int
}

// Ages summarizes staleness for the oldest ready/inflight rows.
type Ages struct {
	OldestReady    time.Duration
	OldestInflight time.Duration
}
