// Package policyconsumer closes the cross-node half of the candidate
// cache's consistency story: every node publishes PolicyChanged through its
// own outbox and invalidates its own cache directly, but peers only learn
// about someone else's mutation by consuming the same bus fanout. The
// consumer does one thing — invalidate, never persist — so there's no dedup
// table and no DLQ: a missed invalidation self-heals on the next
// PolicyChanged or cache miss.
package policyconsumer

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"accessctl/internal/common/bus"
	"accessctl/internal/common/logging"
	"accessctl/internal/common/types"
	"accessctl/internal/rules/cache"
	"accessctl/internal/rules/domain"
)

const durableName = "policy-cache-invalidator"

// envelope mirrors the outbox sender's wire shape; only the fields this
// consumer acts on are decoded.
type envelope struct {
	EventType string          `json:"eventType"`
	OrgID     string          `json:"orgId"`
	Payload   json.RawMessage `json:"payload"`
}

type policyChangedPayload struct {
	AreaID string `json:"areaId"`
}

// Consumer subscribes to every outbox event published for the "rule"
// aggregate and invalidates the area's cached candidate set on each
// PolicyChanged it observes, regardless of which node produced it.
type Consumer struct {
	client    *bus.Client
	cache     *cache.CandidatesCache
	batchSize int
}

// New creates a Consumer bound to client, invalidating candidatesCache.
func New(client *bus.Client, candidatesCache *cache.CandidatesCache, batchSize int) *Consumer {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Consumer{client: client, cache: candidatesCache, batchSize: batchSize}
}

// Start opens a pull subscription against the rule-aggregate subject and
// begins fetching batches in a background goroutine. Returns once the
// subscription is established; the goroutine runs until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	subject := bus.SubjectForAggregate("rule")
	sub, err := c.client.JS.PullSubscribe(subject, durableName, nats.BindStream(bus.StreamOutboxEvents))
	if err != nil {
		return err
	}

	logging.Info("policy-change consumer initialized", "subject", subject, "durable", durableName)

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
					c.processMessage(msg)
				}
			}
		}
	}()

	return nil
}

// processMessage invalidates on every message it can parse and always acks:
// a cache invalidation has no correctness requirement to ever redeliver —
// the worst case of a dropped message is one stale cache entry, which the
// next PolicyChanged (or simply the next cache-filling miss after TTL-free
// eviction) corrects.
func (c *Consumer) processMessage(msg *nats.Msg) {
	if err := c.handle(msg.Data); err != nil {
		logging.Error("policy-change consumer failed to parse message", "error", err)
	}
	if err := msg.Ack(); err != nil {
		logging.Error("policy-change consumer ack failed", "error", err)
	}
}

// handle decodes the envelope and, for a PolicyChanged event, invalidates
// every subjectType cached for (orgId, areaId). An admin-triggered
// invalidate-all drops the entire cache instead.
func (c *Consumer) handle(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	switch env.EventType {
	case domain.EventTypePolicyChanged:
		var payload policyChangedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		c.cache.InvalidateArea(types.OrgID(env.OrgID), types.AreaID(payload.AreaID))
	case domain.EventTypePolicyInvalidateAll:
		c.cache.InvalidateAll()
	}
	return nil
}
