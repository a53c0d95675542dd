package domain

import (
	"time"

	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
)

// AccessAttempt is the immutable record of an intake request. Created once
// per (orgId, idempotencyKey); never mutated afterward.
type AccessAttempt struct {
	id             types.AttemptID
	orgID          types.OrgID
	deviceID       types.DeviceID
	areaID         types.AreaID
	subjectType    directory.SubjectType
	passDirection  directory.PassDirection
	authMethod     directory.AuthMethod
	subjectID      *types.SubjectID
	idempotencyKey string
	occurredAtUTC  time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// NewAccessAttempt constructs a new AccessAttempt.
func NewAccessAttempt(
	id types.AttemptID, orgID types.OrgID, deviceID types.DeviceID, areaID types.AreaID,
	subjectType directory.SubjectType, passDirection directory.PassDirection, authMethod directory.AuthMethod,
	subjectID *types.SubjectID, idempotencyKey string, occurredAtUTC, now time.Time,
) *AccessAttempt {
	return &AccessAttempt{
		id: id, orgID: orgID, deviceID: deviceID, areaID: areaID,
		subjectType: subjectType, passDirection: passDirection, authMethod: authMethod,
		subjectID: subjectID, idempotencyKey: idempotencyKey, occurredAtUTC: occurredAtUTC,
		createdAt: now, updatedAt: now,
	}
}

// ReconstructAccessAttempt rebuilds an AccessAttempt from persisted fields.
func ReconstructAccessAttempt(
	id types.AttemptID, orgID types.OrgID, deviceID types.DeviceID, areaID types.AreaID,
	subjectType directory.SubjectType, passDirection directory.PassDirection, authMethod directory.AuthMethod,
	subjectID *types.SubjectID, idempotencyKey string, occurredAtUTC, createdAt, updatedAt time.Time,
) *AccessAttempt {
	return &AccessAttempt{
		id: id, orgID: orgID, deviceID: deviceID, areaID: areaID,
		subjectType: subjectType, passDirection: passDirection, authMethod: authMethod,
		subjectID: subjectID, idempotencyKey: idempotencyKey, occurredAtUTC: occurredAtUTC,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (a *AccessAttempt) ID() types.AttemptID                   { return a.id }
func (a *AccessAttempt) OrgID() types.OrgID                    { return a.orgID }
func (a *AccessAttempt) DeviceID() types.DeviceID              { return a.deviceID }
func (a *AccessAttempt) AreaID() types.AreaID                  { return a.areaID }
func (a *AccessAttempt) SubjectType() directory.SubjectType    { return a.subjectType }
func (a *AccessAttempt) PassDirection() directory.PassDirection { return a.passDirection }
func (a *AccessAttempt) AuthMethod() directory.AuthMethod      { return a.authMethod }
func (a *AccessAttempt) SubjectID() *types.SubjectID           { return a.subjectID }
func (a *AccessAttempt) IdempotencyKey() string                { return a.idempotencyKey }
func (a *AccessAttempt) OccurredAtUTC() time.Time              { return a.occurredAtUTC }
func (a *AccessAttempt) CreatedAt() time.Time                  { return a.createdAt }
func (a *AccessAttempt) UpdatedAt() time.Time                  { return a.updatedAt }
