// Package cache implements the Rule-Candidates Cache: an explicit
// get/invalidate component replacing annotation-driven caching
// (@CacheResult/@CacheInvalidate) with direct calls a reviewer can trace.
package cache

import (
	"context"
	"sync"

	"accessctl/internal/common/metrics"
	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	"accessctl/internal/rules/domain"
)

type key struct {
	org     types.OrgID
	area    types.AreaID
	subject directory.SubjectType
}

// CandidatesCache memoizes ACTIVE rules per (orgId, areaId, subjectType).
// Local to the process; cluster-wide consistency is eventual, driven by
// every node consuming the same PolicyChanged stream.
type CandidatesCache struct {
	store domain.Store

	mu      sync.RWMutex
	entries map[key][]*domain.Rule
}

// NewCandidatesCache creates an empty cache backed by store.
func NewCandidatesCache(store domain.Store) *CandidatesCache {
	return &CandidatesCache{store: store, entries: make(map[key][]*domain.Rule)}
}

// Get returns the cached candidate set for (orgID, areaID, subjectType),
// loading and memoizing it from the store on a miss.
func (c *CandidatesCache) Get(ctx context.Context, orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType) ([]*domain.Rule, error) {
	k := key{org: orgID, area: areaID, subject: subjectType}

	c.mu.RLock()
	if rules, ok := c.entries[k]; ok {
		c.mu.RUnlock()
		metrics.RecordRuleCacheResult(true)
		return rules, nil
	}
	c.mu.RUnlock()

	metrics.RecordRuleCacheResult(false)
	rules, err := c.store.FindActiveRulesBase(ctx, orgID, areaID, subjectType)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[k] = rules
	c.mu.Unlock()
	return rules, nil
}

// Invalidate drops the cached entry for one (orgId, areaId, subjectType)
// key — called by the rule service after a create or a state change.
func (c *CandidatesCache) Invalidate(orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key{org: orgID, area: areaID, subject: subjectType})
}

// InvalidateArea drops every subjectType entry cached for (orgId, areaId),
// used when a PolicyChanged event doesn't name a specific subjectType.
func (c *CandidatesCache) InvalidateArea(orgID types.OrgID, areaID types.AreaID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.org == orgID && k.area == areaID {
			delete(c.entries, k)
		}
	}
}

// InvalidateAll drops every cached entry — triggered by an
// admin-initiated PolicyInvalidateAllRequested event.
func (c *CandidatesCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[key][]*domain.Rule)
}
