// Package sender implements the outbox sender: a NATS JetStream publish
// step with transport-specific failure classification into retryable and
// terminal outcomes.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"accessctl/internal/common/bus"
	"accessctl/internal/outbox/domain"
)

// envelope is the fixed on-wire shape: it carries the original payload
// verbatim alongside delivery metadata.
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

// NATSSender publishes outbox events to the bus, routed by aggregate type
// subject and carrying orgId for downstream partitioning.
type NATSSender struct {
	client  *bus.Client
	timeout time.Duration
}

// NewNATSSender creates a NATSSender bound to client with the given publish timeout.
func NewNATSSender(client *bus.Client, timeout time.Duration) *NATSSender {
	return &NATSSender{client: client, timeout: timeout}
}

// Send publishes event to "outbox.<aggregateType>.<orgId>" — the tenant is
// the routing token, giving per-org delivery ordering — and classifies any
// publish failure into the dispatcher's retry taxonomy.
func (s *NATSSender) Send(ctx context.Context, event *domain.Event) *domain.SendError {
	env := envelope{
		EventID:       event.ID.String(),
		OrgID:         event.OrgID.String(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		CreatedAtUTC:  event.CreatedAtUTC,
		Attempts:      event.Attempts,
		Payload:       event.Payload,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return &domain.SendError{Retryable: false, Code: "JSON_SERIALIZATION", Cause: err}
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	subject := bus.Subject(event.AggregateType, event.OrgID.String())
	_, err = s.client.JS.Publish(subject, data, nats.Context(publishCtx))
	if err == nil {
		return nil
	}

	return classify(err)
}

// classify maps a NATS publish error to a retryable/terminal outcome.
func classify(err error) *domain.SendError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.SendError{Retryable: true, Code: "TIMEOUT", Cause: err}
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrConnectionDraining), errors.Is(err, nats.ErrDisconnected):
		return &domain.SendError{Retryable: true, Code: "CONNECTION", Cause: err}
	case errors.Is(err, nats.ErrMaxPayload):
		return &domain.SendError{Retryable: false, Code: "OVERSIZE_RECORD", Cause: err}
	case errors.Is(err, nats.ErrStreamNotFound), errors.Is(err, nats.ErrNoStreamResponse):
		return &domain.SendError{Retryable: false, Code: "CONFIGURATION", Cause: err}
	default:
		// Unknown failure: retry conservatively rather than drop the event.
		return &domain.SendError{Retryable: true, Code: "UNKNOWN", Cause: err}
	}
}

var _ domain.Sender = (*NATSSender)(nil)
