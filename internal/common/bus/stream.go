package bus

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

const (
	// StreamOutboxEvents is the durable JetStream stream carrying every
	// event the outbox dispatcher publishes.
	StreamOutboxEvents = "OUTBOX_EVENTS"
	// SubjectPrefix roots every outbox subject.
	SubjectPrefix = "outbox"
	// SubjectAll matches every event the dispatcher ever publishes.
	SubjectAll = "outbox.>"

	// StreamAuditDeadLetter is the durable stream backing the audit
	// pipeline's dead-letter channels.
	StreamAuditDeadLetter = "AUDIT_DEADLETTER"
	// SubjectAuditDLQ receives messages the audit consumer terminated;
	// each gets exactly one reprocessing attempt.
	SubjectAuditDLQ = "audit.dlq"
	// SubjectAuditParkingLot is terminal: messages whose DLQ retry failed
	// again land here for human review.
	SubjectAuditParkingLot = "audit.parking-lot"
	// subjectAuditAll matches both dead-letter channels.
	subjectAuditAll = "audit.>"
)

// Subject returns the publish subject for an event: aggregate type first so
// consumers can filter by aggregate with a wildcard, then the tenant as the
// routing token for per-org ordering and filtering, e.g.
// "outbox.access_attempt.org-1".
func Subject(aggregateType, orgID string) string {
	return SubjectPrefix + "." + aggregateType + "." + orgID
}

// SubjectForAggregate matches every tenant's events for one aggregate type,
// e.g. "outbox.rule.>".
func SubjectForAggregate(aggregateType string) string {
	return SubjectPrefix + "." + aggregateType + ".>"
}

// ProvisionStreams idempotently ensures the OUTBOX_EVENTS and
// AUDIT_DEADLETTER streams exist. Safe to call on every process start; a
// no-op once both streams are present.
func (c *Client) ProvisionStreams() error {
	if err := c.ensureStream(StreamOutboxEvents, []string{SubjectAll}); err != nil {
		return err
	}
	return c.ensureStream(StreamAuditDeadLetter, []string{subjectAuditAll})
}

func (c *Client) ensureStream(name string, subjects []string) error {
	_, err := c.JS.StreamInfo(name)
	if err == nil {
		c.log.Info("bus stream already provisioned", "stream", name)
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}
	if _, err := c.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	c.log.Info("bus stream provisioned", "stream", name, "subjects", subjects)
	return nil
}
