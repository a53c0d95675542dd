// Package dispatcher runs the outbox claim/process/release loop on a
// ticker, plus a separate maintenance loop that reclaims ghost locks. A
// compare-and-swap guard skips a tick while the previous one is still
// running rather than queuing overlapping runs.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"accessctl/internal/common/clock"
	"accessctl/internal/common/metrics"
	"accessctl/internal/common/types"
	"accessctl/internal/outbox/domain"
)

// Config controls dispatch cadence, batch size and retry policy.
type Config struct {
	DispatchEvery    time.Duration
	MaintenanceEvery time.Duration
	LockTTL          time.Duration
	BatchSize        int
	MaxAttempts      int
	MaxRetryBackoff  time.Duration
	InstanceID       string
}

// Dispatcher claims pending outbox events and hands each to a Sender,
// applying the retry/backoff state machine on failure.
type Dispatcher struct {
	repo   domain.Repository
	sender domain.Sender
	cfg    Config
	clock  clock.Clock
	log    *slog.Logger

	running atomic.Bool
}

// New creates a Dispatcher.
func New(repo domain.Repository, sender domain.Sender, cfg Config, clk clock.Clock, log *slog.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, sender: sender, cfg: cfg, clock: clk, log: log}
}

// Run blocks, ticking the dispatch and maintenance loops until ctx is
// cancelled. A single process runs both; "skip if already running" guards
// each tick against overlap rather than queuing concurrent runs.
func (d *Dispatcher) Run(ctx context.Context) {
	dispatchTicker := time.NewTicker(d.cfg.DispatchEvery)
	defer dispatchTicker.Stop()
	maintTicker := time.NewTicker(d.cfg.MaintenanceEvery)
	defer maintTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dispatchTicker.C:
			d.tickDispatch(ctx)
		case <-maintTicker.C:
			d.tickMaintenance(ctx)
		}
	}
}

func (d *Dispatcher) tickDispatch(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	defer d.running.Store(false)

	now := d.clock.Now()
	ids, err := d.repo.ClaimBatch(ctx, now, d.cfg.LockTTL, d.cfg.BatchSize, d.cfg.InstanceID)
	if err != nil {
		d.log.Error("outbox claim failed", "err", err)
		return
	}

	metrics.OutboxDispatchRunsTotal.Inc()
	if len(ids) == 0 {
		metrics.OutboxDispatchEmptyRunsTotal.Inc()
		return
	}
	metrics.OutboxEventsClaimedTotal.Add(float64(len(ids)))

	for _, id := range ids {
		d.processOne(ctx, id)
	}
}

// processOne re-asserts ownership (so a slow claim batch can't race a
// concurrent instance that has since reclaimed an expired lock), reloads
// the event (stopping if it is no longer PENDING), sends it, and records the
// outcome.
func (d *Dispatcher) processOne(ctx context.Context, id types.EventID) {
	now := d.clock.Now()
	if err := d.repo.ReassertOwnership(ctx, id, now, d.cfg.LockTTL, d.cfg.InstanceID); err != nil {
		if errors.Is(err, domain.ErrNotOwned) {
			d.log.Warn("outbox event lost ownership before processing", "event_id", id.String())
			return
		}
		d.log.Error("outbox reassert ownership failed", "event_id", id.String(), "err", err)
		return
	}

	// Lock is ours from here on; release it on every exit path, owned-only.
	defer func() {
		if err := d.repo.ReleaseLock(ctx, id, d.cfg.InstanceID); err != nil {
			d.log.Error("outbox release lock failed", "event_id", id.String(), "err", err)
		}
	}()

	event, err := d.repo.Reload(ctx, id)
	if err != nil {
		d.log.Error("outbox reload failed", "event_id", id.String(), "err", err)
		return
	}
	if event.Status != domain.StatusPending {
		d.log.Warn("outbox event skipped", "event_id", id.String(), "err", domain.ErrNotPending)
		return
	}

	sendErr := d.sender.Send(ctx, event)
	if sendErr == nil {
		event.MarkPublished(now)
		if err := d.repo.Save(ctx, event); err != nil {
			d.log.Error("outbox mark published failed", "event_id", id.String(), "err", err)
			return
		}
		metrics.OutboxEventsPublishedTotal.Inc()
		return
	}

	classification := "permanent"
	if sendErr.Retryable {
		classification = "retryable"
	}
	metrics.OutboxEventsFailedTotal.WithLabelValues(classification).Inc()

	delay := backoff(event.Attempts + 1)
	if sendErr.RetryAfter > 0 {
		delay = time.Duration(sendErr.RetryAfter)
		if delay > d.cfg.MaxRetryBackoff {
			delay = d.cfg.MaxRetryBackoff
		}
	}
	nextAttempt := now.Add(delay)

	lastErr := domain.NewLastError(sendErr.Code, sendErr.HTTPStatus, sendErr.Error(), now)
	event.MarkFailedAttempt(lastErr, sendErr.Retryable, d.cfg.MaxAttempts, nextAttempt)
	if err := d.repo.Save(ctx, event); err != nil {
		d.log.Error("outbox mark failed failed", "event_id", id.String(), "err", err)
		return
	}

	if event.Status == domain.StatusFailed {
		metrics.OutboxEventsExhaustedTotal.Inc()
		d.log.Error("outbox event exhausted retries", "event_id", id.String(), "code", sendErr.Code)
	} else {
		metrics.OutboxEventsRetriedTotal.Inc()
		d.log.Warn("outbox event send failed, scheduled for retry", "event_id", id.String(), "code", sendErr.Code, "next_attempt", nextAttempt)
	}
}

func (d *Dispatcher) tickMaintenance(ctx context.Context) {
	now := d.clock.Now()
	n, err := d.repo.ReleaseExpiredLocks(ctx, now, d.cfg.LockTTL)
	if err != nil {
		d.log.Error("outbox maintenance failed", "err", err)
		return
	}
	if n > 0 {
		metrics.OutboxExpiredLocksReclaimedTotal.Add(float64(n))
		d.log.Warn("outbox reclaimed expired locks", "count", n)
	}

	counts, err := d.repo.CountByStatus(ctx, now, d.cfg.LockTTL)
	if err != nil {
		d.log.Error("outbox gauge refresh failed", "err", err)
		return
	}
	metrics.OutboxPendingEvents.WithLabelValues("ready").Set(float64(counts.Ready))
	metrics.OutboxPendingEvents.WithLabelValues("in_flight").Set(float64(counts.Inflight))
	metrics.OutboxFailedEvents.Set(float64(counts.Failed))

	ages, err := d.repo.OldestAges(ctx, now, d.cfg.LockTTL)
	if err != nil {
		d.log.Error("outbox age gauge refresh failed", "err", err)
		return
	}
	metrics.OutboxOldestReadyAge.Set(ages.OldestReady.Seconds())
	metrics.OutboxOldestInflightAge.Set(ages.OldestInflight.Seconds())
}

// baseBackoff is the fixed per-attempt schedule: attempt 1 retries after 2s,
// attempt 2 after 10s, attempt 3 after 30s, attempt 4 after 2m, and every
// attempt from 5 on after 5m.
var baseBackoff = []time.Duration{
	2 * time.Second,
	10 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// backoff returns the jittered delay before the given attempt number
// (1-indexed) is retried, applying a random factor in [0.7, 1.3) and
// flooring the result to at least one second.
func backoff(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(baseBackoff) {
		idx = len(baseBackoff) - 1
	}
	base := baseBackoff[idx]

	jitter := 0.7 + rand.Float64()*0.6
	d := time.Duration(float64(base) * jitter)
	if d < time.Second {
		d = time.Second
	}
	return d
}
