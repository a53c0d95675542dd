package application

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"

	"accessctl/internal/access/domain"
	"accessctl/internal/common/types"
	tenancy "accessctl/internal/tenancy/domain"
	rules "accessctl/internal/rules/domain"
)

// PureHelpersSuite covers the unexported response-shaping functions — the
// only part of this package reachable without a real Postgres executor,
// since RegisterAttempt is built around *dbx.AtomicExecutor.
type PureHelpersSuite struct {
	suite.Suite
	now time.Time
}

func TestPureHelpersSuite(t *testing.T) {
	suite.Run(t, new(PureHelpersSuite))
}

func (s *PureHelpersSuite) SetupTest() {
	s.now = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
}

func (s *PureHelpersSuite) TestToAttemptResponseWithoutCommand() {
	attempt := domain.NewAccessAttempt(
		types.AttemptID("attempt-1"), types.OrgID("org-1"), types.DeviceID("device-1"), types.AreaID("area-1"),
		"RESIDENT", "IN", "CARD", nil, "idem-1", s.now, s.now,
	)
	decision := domain.NewDecision(
		types.DecisionID("decision-1"), types.OrgID("org-1"), attempt.ID(), domain.ResultAllow,
		"ALLOW", nil, s.now, nil, s.now,
	)

	resp := toAttemptResponse(attempt, decision, nil, nil)

	s.Equal("attempt-1", resp.AttemptID)
	s.Equal("ALLOW", resp.Result)
	s.Nil(resp.SuggestedCommand)
	s.Nil(resp.ExpiresAt)
}

func (s *PureHelpersSuite) TestToAttemptResponseWithExpiryAndCommand() {
	attempt := domain.NewAccessAttempt(
		types.AttemptID("attempt-1"), types.OrgID("org-1"), types.DeviceID("device-1"), types.AreaID("area-1"),
		"RESIDENT", "IN", "CARD", nil, "idem-1", s.now, s.now,
	)
	expires := s.now.Add(time.Hour)
	decision := domain.NewDecision(
		types.DecisionID("decision-1"), types.OrgID("org-1"), attempt.ID(), domain.ResultDeny,
		"DEVICE_INACTIVE", nil, s.now, &expires, s.now,
	)
	cmd := "DENY_WITH_SIGNAL"
	msg := "try again"

	resp := toAttemptResponse(attempt, decision, &cmd, &msg)

	s.Require().NotNil(resp.ExpiresAt)
	s.Equal(expires.Format(time.RFC3339), *resp.ExpiresAt)
	s.Require().NotNil(resp.SuggestedCommand)
	s.Equal(cmd, *resp.SuggestedCommand)
	s.Equal(msg, *resp.Message)
}

func (s *PureHelpersSuite) TestToRuleAction() {
	s.Equal(rules.ActionDeny, toRuleAction(tenancy.DecisionDeny))
	s.Equal(rules.ActionAllow, toRuleAction(tenancy.DecisionAllow))
}

func (s *PureHelpersSuite) TestReasonDetailPtr() {
	s.Nil(reasonDetailPtr(""))
	got := reasonDetailPtr("detail")
	s.Require().NotNil(got)
	s.Equal("detail", *got)
}

func (s *PureHelpersSuite) TestIsUniqueViolation() {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "access_attempts_org_idempotency_key"}
	s.True(isUniqueViolation(unique))
	s.True(isUniqueViolation(fmt.Errorf("save attempt: %w", unique)), "matches through wrapping")
	s.False(isUniqueViolation(&pgconn.PgError{Code: "23503"}), "FK violations are not idempotency races")
	s.False(isUniqueViolation(errors.New("db down")))
}
