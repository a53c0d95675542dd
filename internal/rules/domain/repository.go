package domain

import (
	"context"
	"time"

	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
)

// ListFilter narrows a rule listing by any combination of fields; zero
// values mean "no filter on this field".
type ListFilter struct {
	AreaID      *types.AreaID
	DeviceID    *types.DeviceID
	SubjectType *directory.SubjectType
	Direction   *directory.PassDirection
	AuthMethod  *directory.AuthMethod
	Action      *Action
	State       *State
	Limit       int
	Offset      int
}

// Store is the rule persistence contract.
type Store interface {
	// List returns rules matching filter, ordered updatedAtUtc DESC.
	List(ctx context.Context, orgID types.OrgID, filter ListFilter) ([]*Rule, error)
	// Count returns the count of rules matching filter, ignoring Limit/Offset.
	Count(ctx context.Context, orgID types.OrgID, filter ListFilter) (int, error)
	// FindByID loads a single rule scoped to its organization.
	FindByID(ctx context.Context, orgID types.OrgID, id types.RuleID) (*Rule, error)
	// Save inserts or updates a rule.
	Save(ctx context.Context, rule *Rule) error
	// ExistsDuplicate reports whether a logically-duplicate ACTIVE rule
	// already exists, treating NULL matchers/windows as a distinguished
	// wildcard value rather than SQL NULL-is-unequal-to-NULL. excludeID, if
	// non-nil, omits that rule (used when checking an in-place update).
	ExistsDuplicate(ctx context.Context, rule *Rule, excludeID *types.RuleID) (bool, error)
	// FindActiveRulesBase returns every ACTIVE rule for (org, area,
	// subjectType), ordered priority DESC, updatedAtUtc DESC — the set C4 caches.
	FindActiveRulesBase(ctx context.Context, orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType) ([]*Rule, error)
	// FindCandidatesForIntent runs the engine-friendly query directly
	// (bypassing the cache): wildcard matcher filtering, UTC validity, and
	// ordering are all pushed into SQL.
	FindCandidatesForIntent(ctx context.Context, orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType, deviceID types.DeviceID, direction directory.PassDirection, authMethod directory.AuthMethod, occurredAtUTC time.Time) ([]*Rule, error)
}
