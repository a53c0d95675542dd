package domain

import "accessctl/internal/common/types"

// DomainEvent is implemented by every event this repository publishes.
// Replaces reflection-based introspection: the writer asks the event for its
// tenant and aggregate coordinates instead of inspecting it with reflect.
type DomainEvent interface {
	OrgID() types.OrgID
	EventType() string
	AggregateType() string
	AggregateID() string
}

// HasEventID is implemented by events that carry their own identifier in
// their payload. Nothing in the delivery path reads it: the audit consumer
// derives its eventKey from the envelope's eventId, which the sender fills
// with the outbox row's ID.
type HasEventID interface {
	EventID() string
}
