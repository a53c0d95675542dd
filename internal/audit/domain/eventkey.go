package domain

import (
	"fmt"
	"time"
)

// DeriveEventKey computes the dedup boundary for a consumed event. Preferring
// the event's own natural id, falling back to the aggregate it mutated, and
// finally to a timestamp keeps redelivery idempotent without requiring every
// event type to carry a dedicated identifier.
//
//   - sourceEventID present: "{orgId}|{eventType}|{sourceEventID}"
//   - else aggregateID present: "{orgId}|{eventType}|{aggregateID}"
//   - else: "{orgId}|{eventType}|{aggregateID}|{occurredAt.UnixNano}"
func DeriveEventKey(orgID, eventType, aggregateID, sourceEventID string, occurredAt time.Time) string {
	if sourceEventID != "" {
		return fmt.Sprintf("%s|%s|%s", orgID, eventType, sourceEventID)
	}
	if aggregateID != "" && aggregateID != "UNKNOWN" {
		return fmt.Sprintf("%s|%s|%s", orgID, eventType, aggregateID)
	}
	return fmt.Sprintf("%s|%s|%s|%d", orgID, eventType, aggregateID, occurredAt.UnixNano())
}
