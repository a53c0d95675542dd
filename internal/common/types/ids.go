package types

import "github.com/google/uuid"

// OrgID identifies a tenant (organization). Every business record is scoped
// to exactly one OrgID.
type OrgID string

// AreaID identifies a logical zone (floor, gate) inside an organization.
type AreaID string

// DeviceID identifies a physical access-control device.
type DeviceID string

// RuleID identifies a policy rule.
type RuleID string

// AttemptID identifies an access attempt.
type AttemptID string

// DecisionID identifies a decision taken for an attempt.
type DecisionID string

// CommandID identifies a device command emitted for an attempt.
type CommandID string

// SubjectID identifies a resident, visitor, or group referenced by an
// access attempt. Opaque at this layer — which concrete entity it points to
// depends on SubjectType.
type SubjectID string

// CorrelationID tracks a request across component and process boundaries.
type CorrelationID string

// CausationID links an event to the event that caused it.
type CausationID string

// EventID uniquely identifies a domain/outbox event.
type EventID string

// NewEventID generates a new unique EventID.
func NewEventID() EventID {
	return EventID(uuid.NewString())
}

// NewCorrelationID generates a new unique CorrelationID.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.NewString())
}

func (id OrgID) String() string         { return string(id) }
func (id OrgID) IsEmpty() bool          { return id == "" }
func (id AreaID) String() string        { return string(id) }
func (id AreaID) IsEmpty() bool         { return id == "" }
func (id DeviceID) String() string      { return string(id) }
func (id DeviceID) IsEmpty() bool       { return id == "" }
func (id RuleID) String() string        { return string(id) }
func (id AttemptID) String() string     { return string(id) }
func (id DecisionID) String() string    { return string(id) }
func (id CommandID) String() string     { return string(id) }
func (id SubjectID) String() string     { return string(id) }
func (id SubjectID) IsEmpty() bool      { return id == "" }
func (id CorrelationID) String() string { return string(id) }
func (id CorrelationID) IsEmpty() bool  { return id == "" }
func (id CausationID) String() string   { return string(id) }
func (id EventID) String() string       { return string(id) }
