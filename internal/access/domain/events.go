package domain

import (
	"time"

	"accessctl/internal/common/types"
)

const (
	EventTypeAttemptRegistered = "access.attempt_registered"
	EventTypeDecisionTaken     = "access.decision_taken"
	EventTypeCommandEmitted    = "access.command_emitted"
)

// AttemptRegistered is emitted once per newly persisted AccessAttempt.
type AttemptRegistered struct {
	EventIDValue string         `json:"eventId"`
	OrgIDValue   types.OrgID    `json:"orgId"`
	AttemptID    types.AttemptID `json:"attemptId"`
	DeviceID     types.DeviceID `json:"deviceId"`
	AreaID       types.AreaID   `json:"areaId"`
	OccurredAt   time.Time      `json:"occurredAtUtc"`
}

func NewAttemptRegistered(orgID types.OrgID, attemptID types.AttemptID, deviceID types.DeviceID, areaID types.AreaID, now time.Time) AttemptRegistered {
	return AttemptRegistered{
		EventIDValue: types.NewEventID().String(),
		OrgIDValue:   orgID,
		AttemptID:    attemptID,
		DeviceID:     deviceID,
		AreaID:       areaID,
		OccurredAt:   now,
	}
}

func (e AttemptRegistered) OrgID() types.OrgID    { return e.OrgIDValue }
func (e AttemptRegistered) EventType() string     { return EventTypeAttemptRegistered }
func (e AttemptRegistered) AggregateType() string { return "access_attempt" }
func (e AttemptRegistered) AggregateID() string   { return e.AttemptID.String() }
func (e AttemptRegistered) EventID() string       { return e.EventIDValue }

// DecisionTaken is emitted once per Decision, carrying the verdict the
// engine reached so downstream consumers (audit, notifications) never need
// to re-run the evaluation.
type DecisionTaken struct {
	EventIDValue string          `json:"eventId"`
	OrgIDValue   types.OrgID     `json:"orgId"`
	AttemptID    types.AttemptID `json:"attemptId"`
	DecisionID   types.DecisionID `json:"decisionId"`
	Result       Result          `json:"result"`
	ReasonCode   string          `json:"reasonCode"`
	OccurredAt   time.Time       `json:"occurredAtUtc"`
}

func NewDecisionTaken(orgID types.OrgID, attemptID types.AttemptID, decisionID types.DecisionID, result Result, reasonCode string, now time.Time) DecisionTaken {
	return DecisionTaken{
		EventIDValue: types.NewEventID().String(),
		OrgIDValue:   orgID,
		AttemptID:    attemptID,
		DecisionID:   decisionID,
		Result:       result,
		ReasonCode:   reasonCode,
		OccurredAt:   now,
	}
}

func (e DecisionTaken) OrgID() types.OrgID    { return e.OrgIDValue }
func (e DecisionTaken) EventType() string     { return EventTypeDecisionTaken }
func (e DecisionTaken) AggregateType() string { return "decision" }
func (e DecisionTaken) AggregateID() string   { return e.DecisionID.String() }
func (e DecisionTaken) EventID() string       { return e.EventIDValue }

// CommandEmitted is emitted once per DeviceCommand created for a decision.
type CommandEmitted struct {
	EventIDValue string          `json:"eventId"`
	OrgIDValue   types.OrgID     `json:"orgId"`
	AttemptID    types.AttemptID `json:"attemptId"`
	CommandID    types.CommandID `json:"commandId"`
	DeviceID     types.DeviceID  `json:"deviceId"`
	Command      Command         `json:"command"`
	OccurredAt   time.Time       `json:"occurredAtUtc"`
}

func NewCommandEmitted(orgID types.OrgID, attemptID types.AttemptID, commandID types.CommandID, deviceID types.DeviceID, command Command, now time.Time) CommandEmitted {
	return CommandEmitted{
		EventIDValue: types.NewEventID().String(),
		OrgIDValue:   orgID,
		AttemptID:    attemptID,
		CommandID:    commandID,
		DeviceID:     deviceID,
		Command:      command,
		OccurredAt:   now,
	}
}

func (e CommandEmitted) OrgID() types.OrgID    { return e.OrgIDValue }
func (e CommandEmitted) EventType() string     { return EventTypeCommandEmitted }
func (e CommandEmitted) AggregateType() string { return "device_command" }
func (e CommandEmitted) AggregateID() string   { return e.CommandID.String() }
func (e CommandEmitted) EventID() string       { return e.EventIDValue }
