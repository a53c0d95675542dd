// Package domain holds the durable audit trail: every whitelisted event
// consumed from the bus, persisted exactly once under a derived dedup key. There is no
// separate "audit event" concept upstream — the bus envelope itself, plus a
// derived key, is all a log row needs.
package domain

import (
	"encoding/json"
	"time"

	"accessctl/internal/common/types"
)

// AuditLog is one durably recorded occurrence of a published event. EventKey
// is the idempotency boundary: redelivery of the same bus message must
// resolve to the same EventKey so a retrying consumer never double-records.
type AuditLog struct {
	id            types.EventID
	orgID         types.OrgID
	eventKey      string
	eventType     string
	aggregateType string
	aggregateID   string
	sourceEventID string
	payload       json.RawMessage
	occurredAt    time.Time
	recordedAt    time.Time
}

// NewAuditLog constructs a fresh AuditLog row ready to insert.
func NewAuditLog(orgID types.OrgID, eventKey, eventType, aggregateType, aggregateID, sourceEventID string, payload json.RawMessage, occurredAt, recordedAt time.Time) *AuditLog {
	return &AuditLog{
		id:            types.NewEventID(),
		orgID:         orgID,
		eventKey:      eventKey,
		eventType:     eventType,
		aggregateType: aggregateType,
		aggregateID:   aggregateID,
		sourceEventID: sourceEventID,
		payload:       payload,
		occurredAt:    occurredAt,
		recordedAt:    recordedAt,
	}
}

// ReconstructAuditLog rebuilds an AuditLog from storage.
func ReconstructAuditLog(id types.EventID, orgID types.OrgID, eventKey, eventType, aggregateType, aggregateID, sourceEventID string, payload json.RawMessage, occurredAt, recordedAt time.Time) *AuditLog {
	return &AuditLog{
		id:            id,
		orgID:         orgID,
		eventKey:      eventKey,
		eventType:     eventType,
		aggregateType: aggregateType,
		aggregateID:   aggregateID,
		sourceEventID: sourceEventID,
		payload:       payload,
		occurredAt:    occurredAt,
		recordedAt:    recordedAt,
	}
}

func (a *AuditLog) ID() types.EventID        { return a.id }
func (a *AuditLog) OrgID() types.OrgID       { return a.orgID }
func (a *AuditLog) EventKey() string         { return a.eventKey }
func (a *AuditLog) EventType() string        { return a.eventType }
func (a *AuditLog) AggregateType() string    { return a.aggregateType }
func (a *AuditLog) AggregateID() string      { return a.aggregateID }
func (a *AuditLog) SourceEventID() string    { return a.sourceEventID }
func (a *AuditLog) Payload() json.RawMessage { return a.payload }
func (a *AuditLog) OccurredAt() time.Time    { return a.occurredAt }
func (a *AuditLog) RecordedAt() time.Time    { return a.recordedAt }
