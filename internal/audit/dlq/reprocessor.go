package dlq

import (
	"context"
	"time"

	"accessctl/internal/common/clock"
	"accessctl/internal/common/logging"
	"accessctl/internal/common/metrics"
)

// Replay re-attempts the work that originally terminated the message. A
// non-nil error marks the entry exhausted (terminal); nil marks it resolved.
type Replay func(ctx context.Context, subject string, rawPayload []byte) error

// Reprocessor gives every parked entry exactly one more attempt; an entry
// that fails again is announced on the parking-lot channel and becomes
// terminal.
type Reprocessor struct {
	repo      *Repository
	publisher *Publisher
	replay    Replay
	clock     clock.Clock
	batch     int
}

// NewReprocessor creates a Reprocessor that claims up to batch parked
// entries per Run call and replays each through replay. publisher, if
// non-nil, announces exhausted entries on the parking-lot channel.
func NewReprocessor(repo *Repository, publisher *Publisher, replay Replay, clk clock.Clock, batch int) *Reprocessor {
	return &Reprocessor{repo: repo, publisher: publisher, replay: replay, clock: clk, batch: batch}
}

// Run claims one batch of parked entries and retries each exactly once.
func (p *Reprocessor) Run(ctx context.Context) error {
	entries, err := p.repo.ClaimParked(ctx, p.batch)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		now := p.clock.Now()
		if err := p.replay(ctx, entry.Subject, entry.RawPayload); err != nil {
			logging.ErrorContext(ctx, "dlq reprocess failed, entry is terminal",
				"id", entry.ID, "subject", entry.Subject, "error", err)
			entry.Attempts++
			entry.ErrorMessage = err.Error()
			entry.UpdatedAt = now
			if p.publisher != nil {
				if pubErr := p.publisher.PublishParkingLot(ctx, entry); pubErr != nil {
					logging.ErrorContext(ctx, "dlq parking-lot publish failed", "id", entry.ID, "error", pubErr)
				}
			}
			if markErr := p.repo.MarkExhausted(ctx, entry.ID, err.Error(), now); markErr != nil {
				logging.ErrorContext(ctx, "dlq mark-exhausted failed", "id", entry.ID, "error", markErr)
			}
			continue
		}
		if err := p.repo.MarkResolved(ctx, entry.ID, now); err != nil {
			logging.ErrorContext(ctx, "dlq mark-resolved failed", "id", entry.ID, "error", err)
		}
	}

	if depth, err := p.repo.Depth(ctx); err == nil {
		metrics.AuditDLQDepth.Set(float64(depth))
	}
	return nil
}

// RunLoop calls Run on a fixed interval until ctx is cancelled.
func (p *Reprocessor) RunLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Run(ctx); err != nil {
				logging.ErrorContext(ctx, "dlq reprocessor run failed", "error", err)
			}
		}
	}
}
