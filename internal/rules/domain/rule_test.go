package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	"accessctl/internal/rules/domain"
)

type RuleSuite struct {
	suite.Suite
	now time.Time
}

func TestRuleSuite(t *testing.T) {
	suite.Run(t, new(RuleSuite))
}

func (s *RuleSuite) SetupTest() {
	s.now = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
}

func (s *RuleSuite) newRule(deviceID *types.DeviceID, direction *directory.PassDirection, auth *directory.AuthMethod, validity *domain.ValidityWindow, daily *domain.DailyWindow) *domain.Rule {
	return domain.NewRule(
		types.RuleID("rule-1"), types.OrgID("org-1"), types.AreaID("area-1"),
		directory.SubjectTypeResident, deviceID, direction, auth,
		domain.ActionAllow, validity, daily, 0, nil, s.now,
	)
}

func (s *RuleSuite) TestSpecificity() {
	s.Run("wildcard rule has zero specificity", func() {
		r := s.newRule(nil, nil, nil, nil, nil)
		s.Equal(0, r.Specificity())
	})

	s.Run("every matcher and window adds one", func() {
		deviceID := types.DeviceID("device-1")
		direction := directory.PassDirectionIn
		auth := directory.AuthMethodCard
		validity := &domain.ValidityWindow{ValidFromUTC: s.now, ValidToUTC: s.now.Add(time.Hour)}
		daily := &domain.DailyWindow{FromLocal: "09:00", ToLocal: "17:00"}
		r := s.newRule(&deviceID, &direction, &auth, validity, daily)
		s.Equal(5, r.Specificity())
	})
}

func (s *RuleSuite) TestLifecycleTransitions() {
	s.Run("new rule starts ACTIVE", func() {
		r := s.newRule(nil, nil, nil, nil, nil)
		s.Equal(domain.StateActive, r.State())
	})

	s.Run("inactivate soft-deletes and bumps updatedAt", func() {
		r := s.newRule(nil, nil, nil, nil, nil)
		later := s.now.Add(time.Hour)
		r.Inactivate(later)
		s.Equal(domain.StateInactive, r.State())
		s.Equal(later, r.UpdatedAt())
	})

	s.Run("activate restores an inactivated rule", func() {
		r := s.newRule(nil, nil, nil, nil, nil)
		r.Inactivate(s.now.Add(time.Hour))
		again := s.now.Add(2 * time.Hour)
		r.Activate(again)
		s.Equal(domain.StateActive, r.State())
		s.Equal(again, r.UpdatedAt())
	})
}

func (s *RuleSuite) TestReconstructPreservesState() {
	r := domain.ReconstructRule(
		types.RuleID("rule-2"), types.OrgID("org-1"), types.AreaID("area-1"),
		directory.SubjectTypeResident, nil, nil, nil,
		domain.ActionDeny, nil, nil, 3, domain.StateInactive, nil, s.now, s.now,
	)
	s.Equal(domain.StateInactive, r.State())
	s.Equal(domain.ActionDeny, r.Action())
	s.Equal(3, r.Priority())
}
