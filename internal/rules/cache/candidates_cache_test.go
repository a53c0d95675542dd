package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	"accessctl/internal/rules/cache"
	"accessctl/internal/rules/domain"
)

// fakeStore implements domain.Store entirely in memory, tracking how many
// times FindActiveRulesBase is called so tests can assert on cache hits.
type fakeStore struct {
	calls int
	rules []*domain.Rule
}

func (f *fakeStore) List(ctx context.Context, orgID types.OrgID, filter domain.ListFilter) ([]*domain.Rule, error) {
	return nil, nil
}
func (f *fakeStore) Count(ctx context.Context, orgID types.OrgID, filter domain.ListFilter) (int, error) {
	return 0, nil
}
func (f *fakeStore) FindByID(ctx context.Context, orgID types.OrgID, id types.RuleID) (*domain.Rule, error) {
	return nil, nil
}
func (f *fakeStore) Save(ctx context.Context, rule *domain.Rule) error { return nil }
func (f *fakeStore) ExistsDuplicate(ctx context.Context, rule *domain.Rule, excludeID *types.RuleID) (bool, error) {
	return false, nil
}
func (f *fakeStore) FindActiveRulesBase(ctx context.Context, orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType) ([]*domain.Rule, error) {
	f.calls++
	return f.rules, nil
}
func (f *fakeStore) FindCandidatesForIntent(ctx context.Context, orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType, deviceID types.DeviceID, direction directory.PassDirection, authMethod directory.AuthMethod, occurredAtUTC time.Time) ([]*domain.Rule, error) {
	return nil, nil
}

type CandidatesCacheSuite struct {
	suite.Suite
	ctx   context.Context
	org   types.OrgID
	area  types.AreaID
	other types.AreaID
	subj  directory.SubjectType
}

func TestCandidatesCacheSuite(t *testing.T) {
	suite.Run(t, new(CandidatesCacheSuite))
}

func (s *CandidatesCacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.org = types.OrgID("org-1")
	s.area = types.AreaID("area-1")
	s.other = types.AreaID("area-2")
	s.subj = directory.SubjectTypeResident
}

func (s *CandidatesCacheSuite) TestGetMemoizesAcrossCalls() {
	store := &fakeStore{rules: []*domain.Rule{{}}}
	c := cache.NewCandidatesCache(store)

	_, err := c.Get(s.ctx, s.org, s.area, s.subj)
	s.Require().NoError(err)
	_, err = c.Get(s.ctx, s.org, s.area, s.subj)
	s.Require().NoError(err)

	s.Equal(1, store.calls)
}

func (s *CandidatesCacheSuite) TestInvalidateForcesReload() {
	store := &fakeStore{}
	c := cache.NewCandidatesCache(store)

	_, err := c.Get(s.ctx, s.org, s.area, s.subj)
	s.Require().NoError(err)
	c.Invalidate(s.org, s.area, s.subj)
	_, err = c.Get(s.ctx, s.org, s.area, s.subj)
	s.Require().NoError(err)

	s.Equal(2, store.calls)
}

func (s *CandidatesCacheSuite) TestInvalidateAreaDropsEverySubjectType() {
	store := &fakeStore{}
	c := cache.NewCandidatesCache(store)

	_, err := c.Get(s.ctx, s.org, s.area, directory.SubjectTypeResident)
	s.Require().NoError(err)
	_, err = c.Get(s.ctx, s.org, s.area, directory.SubjectTypeGroupMember)
	s.Require().NoError(err)
	_, err = c.Get(s.ctx, s.org, s.other, directory.SubjectTypeResident)
	s.Require().NoError(err)
	s.Equal(3, store.calls)

	c.InvalidateArea(s.org, s.area)

	_, err = c.Get(s.ctx, s.org, s.area, directory.SubjectTypeResident)
	s.Require().NoError(err)
	_, err = c.Get(s.ctx, s.org, s.area, directory.SubjectTypeGroupMember)
	s.Require().NoError(err)
	s.Equal(5, store.calls, "both subject types for the invalidated area reload")

	_, err = c.Get(s.ctx, s.org, s.other, directory.SubjectTypeResident)
	s.Require().NoError(err)
	s.Equal(5, store.calls, "the untouched area's entry is still cached")
}

func (s *CandidatesCacheSuite) TestInvalidateAllDropsEverything() {
	store := &fakeStore{}
	c := cache.NewCandidatesCache(store)

	_, err := c.Get(s.ctx, s.org, s.area, s.subj)
	s.Require().NoError(err)
	_, err = c.Get(s.ctx, s.org, s.other, s.subj)
	s.Require().NoError(err)
	s.Equal(2, store.calls)

	c.InvalidateAll()

	_, err = c.Get(s.ctx, s.org, s.area, s.subj)
	s.Require().NoError(err)
	_, err = c.Get(s.ctx, s.org, s.other, s.subj)
	s.Require().NoError(err)
	s.Equal(4, store.calls)
}
