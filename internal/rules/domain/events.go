package domain

import (
	"time"

	"accessctl/internal/common/types"
)

// ChangeType enumerates the kinds of rule mutation C12 turns into a
// PolicyChanged event.
type ChangeType string

const (
	ChangeTypeCreated     ChangeType = "CREATED"
	ChangeTypeUpdated     ChangeType = "UPDATED"
	ChangeTypeActivated   ChangeType = "ACTIVATED"
	ChangeTypeInactivated ChangeType = "INACTIVATED"
	ChangeTypeSoftDeleted ChangeType = "SOFT_DELETED"
)

const (
	EventTypePolicyChanged  = "rules.policy_changed"
	EventTypeChangeRejected = "rules.change_rejected"

	// EventTypePolicyInvalidateAll is published by an admin surface outside
	// this repo; consuming it drops every cached candidate set on every node.
	EventTypePolicyInvalidateAll = "rules.policy_invalidate_all_requested"
)

// PolicyChanged is emitted once per successful rule mutation. Its
// consumption drives cache invalidation on every node, local and peer.
type PolicyChanged struct {
	EventIDValue string     `json:"eventId"`
	OrgIDValue   types.OrgID `json:"orgId"`
	AreaID       types.AreaID `json:"areaId"`
	RuleID       types.RuleID `json:"ruleId"`
	ChangeType   ChangeType  `json:"changeType"`
	OccurredAt   time.Time   `json:"occurredAtUtc"`
}

func NewPolicyChanged(orgID types.OrgID, areaID types.AreaID, ruleID types.RuleID, changeType ChangeType, now time.Time) PolicyChanged {
	return PolicyChanged{
		EventIDValue: types.NewEventID().String(),
		OrgIDValue:   orgID,
		AreaID:       areaID,
		RuleID:       ruleID,
		ChangeType:   changeType,
		OccurredAt:   now,
	}
}

func (e PolicyChanged) OrgID() types.OrgID        { return e.OrgIDValue }
func (e PolicyChanged) EventType() string         { return EventTypePolicyChanged }
func (e PolicyChanged) AggregateType() string     { return "rule" }
func (e PolicyChanged) AggregateID() string       { return e.RuleID.String() }
func (e PolicyChanged) EventID() string           { return e.EventIDValue }

// ChangeRejected is published best-effort when a rule mutation fails and
// the areaId is known; publication failure must never propagate to the
// caller.
type ChangeRejected struct {
	EventIDValue string      `json:"eventId"`
	OrgIDValue   types.OrgID `json:"orgId"`
	AreaID       types.AreaID `json:"areaId"`
	Operation    string      `json:"operation"`
	ReasonCode   string      `json:"reasonCode"`
	HTTPStatus   int         `json:"httpStatus"`
	Message      string      `json:"message"`
	OccurredAt   time.Time   `json:"occurredAtUtc"`
}

func NewChangeRejected(orgID types.OrgID, areaID types.AreaID, operation, reasonCode string, httpStatus int, message string, now time.Time) ChangeRejected {
	return ChangeRejected{
		EventIDValue: types.NewEventID().String(),
		OrgIDValue:   orgID,
		AreaID:       areaID,
		Operation:    operation,
		ReasonCode:   reasonCode,
		HTTPStatus:   httpStatus,
		Message:      message,
		OccurredAt:   now,
	}
}

func (e ChangeRejected) OrgID() types.OrgID    { return e.OrgIDValue }
func (e ChangeRejected) EventType() string     { return EventTypeChangeRejected }
func (e ChangeRejected) AggregateType() string { return "rule" }
func (e ChangeRejected) AggregateID() string   { return e.AreaID.String() }
func (e ChangeRejected) EventID() string       { return e.EventIDValue }
