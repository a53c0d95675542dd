package domain_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"accessctl/internal/audit/domain"
)

type EventKeySuite struct {
	suite.Suite
	now time.Time
}

func TestEventKeySuite(t *testing.T) {
	suite.Run(t, new(EventKeySuite))
}

func (s *EventKeySuite) SetupTest() {
	s.now = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
}

func (s *EventKeySuite) TestPrefersSourceEventID() {
	key := domain.DeriveEventKey("org-1", "RuleCreated", "rule-1", "event-1", s.now)
	s.Equal("org-1|RuleCreated|event-1", key)
}

func (s *EventKeySuite) TestFallsBackToAggregateIDWhenNoSourceEventID() {
	key := domain.DeriveEventKey("org-1", "RuleCreated", "rule-1", "", s.now)
	s.Equal("org-1|RuleCreated|rule-1", key)
}

func (s *EventKeySuite) TestTreatsUnknownAggregateIDAsAbsent() {
	key := domain.DeriveEventKey("org-1", "RuleCreated", "UNKNOWN", "", s.now)
	s.Equal("org-1|RuleCreated|UNKNOWN|"+timeUnixNano(s.now), key)
}

func (s *EventKeySuite) TestFallsBackToTimestampWhenNeitherPresent() {
	key := domain.DeriveEventKey("org-1", "RuleCreated", "", "", s.now)
	s.Equal("org-1|RuleCreated||"+timeUnixNano(s.now), key)
}

func timeUnixNano(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixNano())
}
