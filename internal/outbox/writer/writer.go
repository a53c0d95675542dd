// Package writer implements the outbox writer: it serializes a domain
// event and enlists its insert in the caller's ambient transaction, right
// before commit.
package writer

import (
	"context"
	"encoding/json"
	"fmt"

	"accessctl/internal/common/clock"
	"accessctl/internal/outbox/domain"
)

// Writer publishes domain events into the outbox within an ambient transaction.
type Writer struct {
	repo  domain.Repository
	clock clock.Clock
}

// NewWriter creates a Writer backed by repo.
func NewWriter(repo domain.Repository, clk clock.Clock) *Writer {
	return &Writer{repo: repo, clock: clk}
}

// Publish serializes ev and appends it as a PENDING outbox row via the
// supplied Repository, which must be bound to the caller's ambient
// transaction. Any serialization or persistence failure aborts the
// caller's transaction — delivery is part of the use case's correctness,
// not a best-effort side channel.
func (w *Writer) Publish(ctx context.Context, ev domain.DomainEvent) error {
	if ev.OrgID().IsEmpty() {
		return domain.ErrMissingOrgID
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	event := domain.NewEvent(ev, payload, w.clock.Now())
	if err := w.repo.Append(ctx, event); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}
