package domain

import "context"

// Repository is the storage contract for the audit trail. Save must be
// idempotent on EventKey: a redelivered message that resolves to the same
// key is a no-op, not an error.
type Repository interface {
	// Save inserts log, reporting whether a new row was written. A false
	// result with a nil error means EventKey already existed — the caller
	// acks the message either way.
	Save(ctx context.Context, log *AuditLog) (inserted bool, err error)
}
