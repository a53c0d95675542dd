package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"accessctl/internal/common/types"
	"accessctl/internal/outbox/domain"
)

type fakeEvent struct {
	orgID         string
	eventType     string
	aggregateType string
	aggregateID   string
}

func (f fakeEvent) OrgID() types.OrgID     { return types.OrgID(f.orgID) }
func (f fakeEvent) EventType() string      { return f.eventType }
func (f fakeEvent) AggregateType() string  { return f.aggregateType }
func (f fakeEvent) AggregateID() string    { return f.aggregateID }

type OutboxEventSuite struct {
	suite.Suite
	now time.Time
}

func TestOutboxEventSuite(t *testing.T) {
	suite.Run(t, new(OutboxEventSuite))
}

func (s *OutboxEventSuite) SetupTest() {
	s.now = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
}

func (s *OutboxEventSuite) TestNewEventDefaultsUnknownAggregate() {
	ev := fakeEvent{orgID: "org-1", eventType: "RuleCreated"}
	e := domain.NewEvent(ev, []byte(`{}`), s.now)

	s.Equal(types.OrgID("org-1"), e.OrgID)
	s.Equal("UNKNOWN", e.AggregateType)
	s.Equal("UNKNOWN", e.AggregateID)
	s.Equal(domain.StatusPending, e.Status)
	s.Equal(0, e.Attempts)
}

func (s *OutboxEventSuite) TestMarkPublishedClearsBackoffState() {
	ev := fakeEvent{orgID: "org-1", eventType: "RuleCreated", aggregateType: "rule", aggregateID: "rule-1"}
	e := domain.NewEvent(ev, []byte(`{}`), s.now)
	e.MarkFailedAttempt(domain.NewLastError("TIMEOUT", nil, "boom", s.now), true, 5, s.now.Add(time.Second))

	e.MarkPublished(s.now.Add(time.Minute))

	s.Equal(domain.StatusPublished, e.Status)
	s.Nil(e.NextAttemptAtUTC)
	s.Nil(e.LastError)
	s.Require().NotNil(e.PublishedAtUTC)
}

func (s *OutboxEventSuite) TestMarkFailedAttemptRetriesWhenRetryableAndUnderLimit() {
	ev := fakeEvent{orgID: "org-1", eventType: "RuleCreated"}
	e := domain.NewEvent(ev, []byte(`{}`), s.now)

	next := s.now.Add(2 * time.Second)
	e.MarkFailedAttempt(domain.NewLastError("TIMEOUT", nil, "boom", s.now), true, 5, next)

	s.Equal(1, e.Attempts)
	s.Equal(domain.StatusPending, e.Status)
	s.Require().NotNil(e.NextAttemptAtUTC)
	s.Equal(next, *e.NextAttemptAtUTC)
}

func (s *OutboxEventSuite) TestMarkFailedAttemptIsTerminalWhenNotRetryable() {
	ev := fakeEvent{orgID: "org-1", eventType: "RuleCreated"}
	e := domain.NewEvent(ev, []byte(`{}`), s.now)

	e.MarkFailedAttempt(domain.NewLastError("OVERSIZE_RECORD", nil, "too big", s.now), false, 5, s.now.Add(time.Second))

	s.Equal(domain.StatusFailed, e.Status)
	s.Nil(e.NextAttemptAtUTC)
}

func (s *OutboxEventSuite) TestMarkFailedAttemptExhaustsAtMaxAttempts() {
	ev := fakeEvent{orgID: "org-1", eventType: "RuleCreated"}
	e := domain.NewEvent(ev, []byte(`{}`), s.now)

	for i := 0; i < 2; i++ {
		e.MarkFailedAttempt(domain.NewLastError("TIMEOUT", nil, "boom", s.now), true, 3, s.now.Add(time.Second))
	}
	s.Equal(domain.StatusPending, e.Status)

	e.MarkFailedAttempt(domain.NewLastError("TIMEOUT", nil, "boom", s.now), true, 3, s.now.Add(time.Second))
	s.Equal(3, e.Attempts)
	s.Equal(domain.StatusFailed, e.Status)
}

func (s *OutboxEventSuite) TestLastErrorMessageIsTruncated() {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	lastErr := domain.NewLastError("TIMEOUT", nil, string(long), s.now)
	s.Len(lastErr.Message, 600)
}

func (s *OutboxEventSuite) TestReady() {
	ev := fakeEvent{orgID: "org-1", eventType: "RuleCreated"}

	s.Run("pending with no lock and no backoff is ready", func() {
		e := domain.NewEvent(ev, []byte(`{}`), s.now)
		s.True(e.Ready(s.now, time.Minute))
	})

	s.Run("published events are never ready", func() {
		e := domain.NewEvent(ev, []byte(`{}`), s.now)
		e.MarkPublished(s.now)
		s.False(e.Ready(s.now, time.Minute))
	})

	s.Run("backoff in the future is not ready", func() {
		e := domain.NewEvent(ev, []byte(`{}`), s.now)
		e.MarkFailedAttempt(domain.NewLastError("TIMEOUT", nil, "boom", s.now), true, 5, s.now.Add(time.Hour))
		s.False(e.Ready(s.now, time.Minute))
	})

	s.Run("backoff already elapsed is ready", func() {
		e := domain.NewEvent(ev, []byte(`{}`), s.now)
		e.MarkFailedAttempt(domain.NewLastError("TIMEOUT", nil, "boom", s.now), true, 5, s.now.Add(-time.Hour))
		s.True(e.Ready(s.now, time.Minute))
	})

	s.Run("a fresh lock inside the TTL window is not ready", func() {
		e := domain.NewEvent(ev, []byte(`{}`), s.now)
		lockedAt := s.now
		e.LockedAtUTC = &lockedAt
		s.False(e.Ready(s.now.Add(30*time.Second), time.Minute))
	})

	s.Run("a lock older than the TTL is ready again", func() {
		e := domain.NewEvent(ev, []byte(`{}`), s.now)
		lockedAt := s.now
		e.LockedAtUTC = &lockedAt
		s.True(e.Ready(s.now.Add(2*time.Minute), time.Minute))
	})
}
