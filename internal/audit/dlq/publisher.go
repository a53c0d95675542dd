package dlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"accessctl/internal/common/bus"
)

// deadLetterMessage is the wire shape for both dead-letter channels: the
// original message verbatim plus where it came from and why it failed.
// Payload is base64-encoded bytes, not embedded JSON — a parked message is
// frequently malformed JSON, which is exactly why it was parked.
type deadLetterMessage struct {
	EntryID       string    `json:"entryId"`
	SourceSubject string    `json:"sourceSubject"`
	Error         string    `json:"error"`
	Attempts      int       `json:"attempts"`
	OccurredAtUTC time.Time `json:"occurredAtUtc"`
	Payload       []byte    `json:"payload"`
}

// Publisher emits dead-letter messages onto the bus side channels: the DLQ
// subject when the consumer first terminates a message, the parking-lot
// subject when its single reprocessing attempt fails too. Callers treat both
// as best-effort — the Postgres archive is the durable record; the channels
// exist so downstream tooling and alerting can observe the dead letters.
type Publisher struct {
	client  *bus.Client
	timeout time.Duration
}

// NewPublisher creates a Publisher bound to client with the given publish timeout.
func NewPublisher(client *bus.Client, timeout time.Duration) *Publisher {
	return &Publisher{client: client, timeout: timeout}
}

// PublishDLQ announces a freshly parked entry on the DLQ channel.
func (p *Publisher) PublishDLQ(ctx context.Context, entry *Entry) error {
	return p.publish(ctx, bus.SubjectAuditDLQ, entry)
}

// PublishParkingLot announces a terminally failed entry on the parking-lot
// channel.
func (p *Publisher) PublishParkingLot(ctx context.Context, entry *Entry) error {
	return p.publish(ctx, bus.SubjectAuditParkingLot, entry)
}

func (p *Publisher) publish(ctx context.Context, subject string, entry *Entry) error {
	msg := deadLetterMessage{
		EntryID:       entry.ID,
		SourceSubject: entry.Subject,
		Error:         entry.ErrorMessage,
		Attempts:      entry.Attempts,
		OccurredAtUTC: entry.UpdatedAt,
		Payload:       entry.RawPayload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err = p.client.JS.Publish(subject, data, nats.Context(publishCtx))
	return err
}
