package domain

import (
	"time"

	"accessctl/internal/common/types"
)

// Status is the lifecycle state of an OutboxEvent row.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPublished Status = "PUBLISHED"
	StatusFailed    Status = "FAILED"
)

// LastError captures the most recent publish failure for an event, truncated
// per the dispatcher's contract (message capped at 600 bytes).
type LastError struct {
	Code       string
	HTTPStatus *int
	Message    string
	AtUTC      *time.Time
}

const lastErrorMessageMaxLen = 600

// NewLastError builds a LastError, truncating the message to the contract length.
func NewLastError(code string, httpStatus *int, message string, at time.Time) LastError {
	if len(message) > lastErrorMessageMaxLen {
		message = message[:lastErrorMessageMaxLen]
	}
	return LastError{Code: code, HTTPStatus: httpStatus, Message: message, AtUTC: &at}
}

// Event is the durable outbox row: a domain event captured in the same
// transaction as the business change that produced it, awaiting dispatch.
type Event struct {
	ID              types.EventID
	OrgID           types.OrgID
	EventType       string
	AggregateType   string
	AggregateID     string
	Payload         []byte
	Status          Status
	Attempts        int
	CreatedAtUTC    time.Time
	NextAttemptAtUTC *time.Time
	PublishedAtUTC   *time.Time
	LockedAtUTC      *time.Time
	LockedBy         string
	LastError        *LastError
}

// NewEvent constructs a fresh PENDING outbox row from a DomainEvent.
// Aggregate coordinates come from the event itself, never from reflection.
func NewEvent(ev DomainEvent, payload []byte, now time.Time) *Event {
	aggType := ev.AggregateType()
	if aggType == "" {
		aggType = "UNKNOWN"
	}
	aggID := ev.AggregateID()
	if aggID == "" {
		aggID = "UNKNOWN"
	}
	return &Event{
		ID:            types.NewEventID(),
		OrgID:         ev.OrgID(),
		EventType:     ev.EventType(),
		AggregateType: aggType,
		AggregateID:   aggID,
		Payload:       payload,
		Status:        StatusPending,
		Attempts:      0,
		CreatedAtUTC:  now,
	}
}

// MarkPublished transitions the event to PUBLISHED and clears error/backoff state.
func (e *Event) MarkPublished(now time.Time) {
	e.Status = StatusPublished
	e.PublishedAtUTC = &now
	e.NextAttemptAtUTC = nil
	e.LastError = nil
}

// MarkFailedAttempt records a failed publish attempt. If the failure is
// terminal or attempts exhaust maxAttempts, the event becomes FAILED;
// otherwise it's rescheduled for nextAttemptAt.
func (e *Event) MarkFailedAttempt(lastErr LastError, retryable bool, maxAttempts int, nextAttemptAt time.Time) {
	e.Attempts++
	e.LastError = &lastErr
	if !retryable || e.Attempts >= maxAttempts {
		e.Status = StatusFailed
		e.NextAttemptAtUTC = nil
		return
	}
	e.NextAttemptAtUTC = &nextAttemptAt
}

// Ready reports whether the event is eligible to be claimed at instant now,
// given the supplied lock TTL.
func (e *Event) Ready(now time.Time, lockTTL time.Duration) bool {
	if e.Status != StatusPending {
		return false
	}
	if e.NextAttemptAtUTC != nil && e.NextAttemptAtUTC.After(now) {
		return false
	}
	if e.LockedAtUTC != nil && e.LockedAtUTC.After(now.Add(-lockTTL)) {
		return false
	}
	return true
}
