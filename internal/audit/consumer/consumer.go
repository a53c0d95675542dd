// Package consumer implements the audit consumer: a durable pull
// subscription over every published event, persisting each whitelisted one
// as an audit log row. The processMessage/processEvent split keeps
// Ack/Nak/Term decisions out of the business logic: processEvent reports
// terminal vs. transient, processMessage translates that into the
// acknowledgment.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	auditdomain "accessctl/internal/audit/domain"
	"accessctl/internal/audit/dlq"
	"accessctl/internal/common/bus"
	"accessctl/internal/common/clock"
	"accessctl/internal/common/ids"
	"accessctl/internal/common/logging"
	"accessctl/internal/common/metrics"
	"accessctl/internal/common/types"
)

const durableName = "audit-consumer-group"

var errMalformedPayload = errors.New("malformed payload")

// auditedEventTypes is the whitelist of event types worth a trail row. An
// envelope outside it is acked and skipped, never persisted or parked. Wire
// names are owned by the producing contexts; this consumer keeps its own copy
// rather than importing every producer package it might ever audit.
var auditedEventTypes = map[string]struct{}{
	"access.attempt_registered": {},
	"access.decision_taken":     {},
	"access.command_emitted":    {},
	"rules.policy_changed":      {},
	"rules.change_rejected":     {},
}

// envelope mirrors the outbox sender's wire shape exactly — the consumer
// has no separate contract with the publisher beyond this struct.
type envelope struct {
	EventID       string          `json:"eventId"`
	OrgID         string          `json:"orgId"`
	EventType     string          `json:"eventType"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	CreatedAtUTC  time.Time       `json:"createdAtUtc"`
	Attempts      int             `json:"attempts"`
	Payload       json.RawMessage `json:"payload"`
}

// Consumer pulls events from the outbox stream and records them in the
// audit trail.
type Consumer struct {
	client    *bus.Client
	repo      auditdomain.Repository
	parker    *dlq.Repository
	dlqPub    *dlq.Publisher
	clock     clock.Clock
	batchSize int
}

// New creates a Consumer bound to client, persisting via repo and parking
// poison-pill messages via parker. dlqPub, if non-nil, announces each parked
// message on the DLQ channel.
func New(client *bus.Client, repo auditdomain.Repository, parker *dlq.Repository, dlqPub *dlq.Publisher, clk clock.Clock, batchSize int) *Consumer {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Consumer{client: client, repo: repo, parker: parker, dlqPub: dlqPub, clock: clk, batchSize: batchSize}
}

// Start opens a pull subscription against the outbox stream and begins
// fetching batches in a background goroutine. Returns once the subscription
// is established; the goroutine runs until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.client.JS.PullSubscribe(bus.SubjectAll, durableName, nats.BindStream(bus.StreamOutboxEvents))
	if err != nil {
		return fmt.Errorf("pull subscribe: %w", err)
	}

	logging.Info("audit consumer initialized", "stream", bus.StreamOutboxEvents, "durable", durableName)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				msgs, err := sub.Fetch(c.batchSize, nats.Context(ctx))
				if err != nil {
					continue // fetch timeout or ctx cancellation: loop and retry
				}
				for _, msg := range msgs {
					c.processMessage(ctx, msg)
				}
			}
		}
	}()

	return nil
}

// processMessage translates processEvent's outcome into the appropriate
// NATS acknowledgment, keeping that policy out of the business logic.
func (c *Consumer) processMessage(ctx context.Context, msg *nats.Msg) {
	if err := c.processEvent(ctx, msg.Subject, msg.Data); err != nil {
		if errors.Is(err, errMalformedPayload) {
			c.park(ctx, msg, err)
			if termErr := msg.Term(); termErr != nil {
				logging.ErrorContext(ctx, "audit consumer term failed", "error", termErr)
			}
			return
		}
		if nakErr := msg.Nak(); nakErr != nil {
			logging.ErrorContext(ctx, "audit consumer nak failed", "error", nakErr)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		logging.ErrorContext(ctx, "audit consumer ack failed", "error", err)
	}
}

// park archives a poison-pill message so it survives the Term call, then
// best-effort announces it on the DLQ channel.
func (c *Consumer) park(ctx context.Context, msg *nats.Msg, cause error) {
	entry := dlq.NewEntry(ids.NewV7(), msg.Subject, msg.Data, cause.Error(), c.clock.Now())
	if err := c.parker.Park(ctx, entry); err != nil {
		logging.ErrorContext(ctx, "audit consumer failed to park message", "subject", msg.Subject, "error", err)
		return
	}
	metrics.AuditEventsConsumedTotal.WithLabelValues("parked").Inc()

	if c.dlqPub != nil {
		if err := c.dlqPub.PublishDLQ(ctx, entry); err != nil {
			logging.ErrorContext(ctx, "audit consumer dlq publish failed", "subject", msg.Subject, "error", err)
		}
	}
}

// ReplayEvent re-runs processEvent for a parked dead-letter entry. It is the
// dlq.Replay function the reprocessor calls: a parked message gets exactly
// the same handling a live delivery would have gotten.
func (c *Consumer) ReplayEvent(ctx context.Context, subject string, rawPayload []byte) error {
	return c.processEvent(ctx, subject, rawPayload)
}

// processEvent deserializes the wire envelope, derives the dedup key, and
// persists the audit log row. Errors wrapping errMalformedPayload are
// terminal (never redelivered); any other error is treated as transient.
func (c *Consumer) processEvent(ctx context.Context, subject string, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.ErrorContext(ctx, "audit consumer malformed envelope", "subject", subject, "error", err)
		return errMalformedPayload
	}

	if env.OrgID == "" || env.EventType == "" {
		logging.ErrorContext(ctx, "audit consumer envelope missing required fields", "subject", subject)
		return errMalformedPayload
	}

	if _, audited := auditedEventTypes[env.EventType]; !audited {
		metrics.AuditEventsConsumedTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	eventKey := auditdomain.DeriveEventKey(env.OrgID, env.EventType, env.AggregateID, env.EventID, env.CreatedAtUTC)

	log := auditdomain.NewAuditLog(
		types.OrgID(env.OrgID), eventKey, env.EventType, env.AggregateType, env.AggregateID,
		env.EventID, env.Payload, env.CreatedAtUTC, c.clock.Now(),
	)

	inserted, err := c.repo.Save(ctx, log)
	if err != nil {
		return fmt.Errorf("save audit log: %w", err)
	}
	if !inserted {
		metrics.AuditEventsConsumedTotal.WithLabelValues("duplicate").Inc()
		logging.DebugContext(ctx, "audit consumer skipped duplicate", "event_key", eventKey)
		return nil
	}
	metrics.AuditEventsConsumedTotal.WithLabelValues("inserted").Inc()
	return nil
}
