package domain

import (
	"context"

	"accessctl/internal/common/types"
)

// Repository persists an attempt, its decision, and its optional command in
// a single transaction. Idempotency is enforced by the unique
// (orgId, idempotencyKey) constraint on access_attempts.
type Repository interface {
	// FindByIdempotencyKey returns the previously stored attempt for
	// (orgId, idempotencyKey), or domain.ErrAttemptNotFound if none exists.
	FindByIdempotencyKey(ctx context.Context, orgID types.OrgID, idempotencyKey string) (*AccessAttempt, error)
	SaveAttempt(ctx context.Context, attempt *AccessAttempt) error
	FindDecisionByAttemptID(ctx context.Context, orgID types.OrgID, attemptID types.AttemptID) (*Decision, error)
	SaveDecision(ctx context.Context, decision *Decision) error
	FindCommandByAttemptID(ctx context.Context, orgID types.OrgID, attemptID types.AttemptID) (*DeviceCommand, error)
	SaveCommand(ctx context.Context, command *DeviceCommand) error
}
