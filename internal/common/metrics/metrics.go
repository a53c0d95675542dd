package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	// HTTPRequestDuration tracks request latency by method, path, and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestTimeout counts requests that hit the timeout threshold by path.
	HTTPRequestTimeout = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_timeout_total",
			Help: "Total number of HTTP request timeouts",
		},
		[]string{"path"},
	)
)

// Database metrics
var (
	// DBTransactionDuration tracks transaction duration by operation label.
	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_transaction_duration_seconds",
			Help:    "Duration of database transactions in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	// DBOptimisticLockConflicts counts optimistic lock conflicts by repository.
	DBOptimisticLockConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_optimistic_lock_conflicts_total",
			Help: "Total number of optimistic lock conflicts",
		},
		[]string{"repository"},
	)

	// DBPoolConnectionsInUse gauges the number of in-use database connections.
	DBPoolConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	// DBPoolConnectionsIdle gauges the number of idle database connections.
	DBPoolConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// Outbox metrics
var (
	// OutboxPendingEvents gauges the number of unpublished outbox events by state.
	OutboxPendingEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Number of outbox events awaiting dispatch, by state",
		},
		[]string{"state"}, // ready, in_flight
	)

	// OutboxOldestReadyAge gauges the age in seconds of the oldest ready PENDING event.
	OutboxOldestReadyAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_oldest_ready_age_seconds",
			Help: "Age of the oldest ready PENDING outbox event in seconds",
		},
	)

	// OutboxOldestInflightAge gauges how long the oldest currently-locked event has been held.
	OutboxOldestInflightAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_oldest_inflight_age_seconds",
			Help: "Age of the oldest in-flight outbox lock in seconds",
		},
	)

	// OutboxFailedEvents gauges the number of terminally FAILED outbox events.
	OutboxFailedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_failed_events",
			Help: "Number of outbox events in terminal FAILED status",
		},
	)

	// OutboxDispatchRunsTotal counts dispatcher loop iterations.
	OutboxDispatchRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_runs_total",
			Help: "Total number of dispatcher loop iterations",
		},
	)

	// OutboxDispatchEmptyRunsTotal counts dispatcher iterations that claimed nothing.
	OutboxDispatchEmptyRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_empty_runs_total",
			Help: "Total number of dispatcher loop iterations that claimed zero events",
		},
	)

	// OutboxEventsClaimedTotal counts events claimed for dispatch.
	OutboxEventsClaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_claimed_total",
			Help: "Total number of outbox events claimed by a dispatcher instance",
		},
	)

	// OutboxEventsPublishedTotal counts events successfully published.
	OutboxEventsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Total number of outbox events successfully published to the bus",
		},
	)

	// OutboxEventsFailedTotal counts publish attempts that failed, by retry classification.
	OutboxEventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_failed_total",
			Help: "Total number of failed outbox publish attempts",
		},
		[]string{"classification"}, // retryable, permanent
	)

	// OutboxEventsRetriedTotal counts events requeued for a later retry.
	OutboxEventsRetriedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_retried_total",
			Help: "Total number of outbox events requeued for retry",
		},
	)

	// OutboxEventsExhaustedTotal counts events that exceeded their max attempts.
	OutboxEventsExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_exhausted_total",
			Help: "Total number of outbox events that exhausted their retry budget",
		},
	)

	// OutboxExpiredLocksReclaimedTotal counts locks reclaimed by the maintenance loop.
	OutboxExpiredLocksReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_expired_locks_reclaimed_total",
			Help: "Total number of expired outbox locks reclaimed by the maintenance loop",
		},
	)
)

// Audit metrics
var (
	// AuditEventsConsumedTotal counts audit events consumed from the bus, by outcome.
	AuditEventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_consumed_total",
			Help: "Total number of audit events consumed from the bus",
		},
		[]string{"outcome"}, // inserted, duplicate, skipped, parked
	)

	// AuditDLQDepth gauges the number of messages currently parked in the DLQ.
	AuditDLQDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_dlq_depth",
			Help: "Number of messages currently parked in the audit dead-letter queue",
		},
	)
)

// Business metrics
var (
	// IdempotencyCacheHits counts cache hits for idempotency lookups.
	IdempotencyCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_cache_hits_total",
			Help: "Total number of idempotency cache hits",
		},
	)

	// AccessAttemptsTotal counts processed access attempts by decision outcome.
	AccessAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_attempts_total",
			Help: "Total number of access attempts evaluated, by decision",
		},
		[]string{"decision"}, // allow, deny, error
	)

	// RuleCacheHits counts RuleCandidatesCache hits/misses.
	RuleCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_cache_requests_total",
			Help: "Total number of rule candidate cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	// TimezoneFallbacksTotal counts zone resolutions that fell back to UTC
	// because the organization's configured timezone was absent or invalid.
	TimezoneFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "timezone_fallbacks_total",
			Help: "Total number of timezone resolutions that fell back to UTC",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns an HTTP middleware that records request metrics.
// Side effects: records Prometheus metrics and reads the current time.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := normalizePath(r.URL.Path)

		HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()

		// Check for timeout (context canceled with 5s timeout typically means timeout)
		if r.Context().Err() != nil && duration >= 4.9 {
			HTTPRequestTimeout.WithLabelValues(path).Inc()
		}
	})
}

// normalizePath normalizes URL paths to avoid cardinality explosion.
// Replaces UUIDs and numeric IDs with placeholders.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/attempts/"):
		return "/attempts/{id}"
	case strings.HasPrefix(path, "/rules/"):
		return "/rules/{id}"
	case strings.HasPrefix(path, "/devices/"):
		return "/devices/{id}"
	case strings.HasPrefix(path, "/areas/"):
		return "/areas/{id}"
	default:
		segments := strings.Split(path, "/")
		for i, seg := range segments {
			if _, err := uuid.Parse(seg); err == nil {
				segments[i] = "{id}"
			} else if _, err := strconv.Atoi(seg); err == nil {
				segments[i] = "{id}"
			}
		}
		return strings.Join(segments, "/")
	}
}

// RecordOptimisticLockConflict increments the optimistic lock conflict counter.
// Side effects: records a Prometheus metric.
func RecordOptimisticLockConflict(repository string) {
	DBOptimisticLockConflicts.WithLabelValues(repository).Inc()
}

// RecordTransactionDuration records a transaction duration.
// Side effects: records a Prometheus metric.
func RecordTransactionDuration(operation string, duration time.Duration) {
	DBTransactionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordIdempotencyCacheHit increments the cache hit counter.
// Side effects: records a Prometheus metric.
func RecordIdempotencyCacheHit() {
	IdempotencyCacheHits.Inc()
}

// RecordAccessAttempt increments the access attempt counter for a decision outcome.
// Side effects: records a Prometheus metric.
func RecordAccessAttempt(decision string) {
	AccessAttemptsTotal.WithLabelValues(decision).Inc()
}

// RecordTimezoneFallback increments the UTC-fallback counter.
// Side effects: records a Prometheus metric.
func RecordTimezoneFallback() {
	TimezoneFallbacksTotal.Inc()
}

// RecordRuleCacheResult increments the rule cache hit/miss counter.
// Side effects: records a Prometheus metric.
func RecordRuleCacheResult(hit bool) {
	if hit {
		RuleCacheHits.WithLabelValues("hit").Inc()
		return
	}
	RuleCacheHits.WithLabelValues("miss").Inc()
}
