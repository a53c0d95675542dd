package domain

import (
	"time"

	"accessctl/internal/common/types"
)

// Result is the decision outcome category.
type Result string

const (
	ResultAllow  Result = "ALLOW"
	ResultDeny   Result = "DENY"
	ResultPending Result = "PENDING"
	ResultError  Result = "ERROR"
)

// Decision is the 1:1 record of the engine's verdict for an AccessAttempt.
type Decision struct {
	id           types.DecisionID
	orgID        types.OrgID
	attemptID    types.AttemptID
	result       Result
	reasonCode   string
	reasonDetail *string
	decidedAt    time.Time
	expiresAt    *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewDecision constructs a new Decision for an attempt.
func NewDecision(
	id types.DecisionID, orgID types.OrgID, attemptID types.AttemptID, result Result,
	reasonCode string, reasonDetail *string, decidedAt time.Time, expiresAt *time.Time, now time.Time,
) *Decision {
	return &Decision{
		id: id, orgID: orgID, attemptID: attemptID, result: result,
		reasonCode: reasonCode, reasonDetail: reasonDetail, decidedAt: decidedAt,
		expiresAt: expiresAt, createdAt: now, updatedAt: now,
	}
}

// ReconstructDecision rebuilds a Decision from persisted fields.
func ReconstructDecision(
	id types.DecisionID, orgID types.OrgID, attemptID types.AttemptID, result Result,
	reasonCode string, reasonDetail *string, decidedAt time.Time, expiresAt *time.Time, createdAt, updatedAt time.Time,
) *Decision {
	return &Decision{
		id: id, orgID: orgID, attemptID: attemptID, result: result,
		reasonCode: reasonCode, reasonDetail: reasonDetail, decidedAt: decidedAt,
		expiresAt: expiresAt, createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (d *Decision) ID() types.DecisionID     { return d.id }
func (d *Decision) OrgID() types.OrgID       { return d.orgID }
func (d *Decision) AttemptID() types.AttemptID { return d.attemptID }
func (d *Decision) Result() Result           { return d.result }
func (d *Decision) ReasonCode() string       { return d.reasonCode }
func (d *Decision) ReasonDetail() *string    { return d.reasonDetail }
func (d *Decision) DecidedAt() time.Time     { return d.decidedAt }
func (d *Decision) ExpiresAt() *time.Time    { return d.expiresAt }
func (d *Decision) CreatedAt() time.Time     { return d.createdAt }
func (d *Decision) UpdatedAt() time.Time     { return d.updatedAt }
