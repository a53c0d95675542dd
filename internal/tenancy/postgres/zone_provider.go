package postgres

import (
	"context"
	"sync"
	"time"
	_ "time/tzdata"

	"accessctl/internal/common/types"
	"accessctl/internal/tenancy/domain"
)

// ZoneProvider resolves effective IANA timezones with an in-process cache,
// keyed by (orgID) and (orgID, areaID). Zone validation goes through stdlib
// time.LoadLocation, with the database embedded via the time/tzdata blank
// import so resolution never depends on the host's tzdata installation.
type ZoneProvider struct {
	repo domain.Repository

	mu       sync.RWMutex
	orgZone  map[types.OrgID]string
	areaZone map[areaKey]string

	onFallback func(orgID types.OrgID)
}

type areaKey struct {
	org  types.OrgID
	area types.AreaID
}

const utcZone = "UTC"

// NewZoneProvider creates a ZoneProvider backed by repo. onFallback, if
// non-nil, is invoked whenever an org's configured timezone is absent or
// invalid and UTC is substituted — the hook main wires to a counter.
func NewZoneProvider(repo domain.Repository, onFallback func(orgID types.OrgID)) *ZoneProvider {
	return &ZoneProvider{
		repo:       repo,
		orgZone:    make(map[types.OrgID]string),
		areaZone:   make(map[areaKey]string),
		onFallback: onFallback,
	}
}

// ZoneForOrg resolves and caches the organization's effective timezone.
func (z *ZoneProvider) ZoneForOrg(ctx context.Context, orgID types.OrgID) (string, error) {
	z.mu.RLock()
	if zone, ok := z.orgZone[orgID]; ok {
		z.mu.RUnlock()
		return zone, nil
	}
	z.mu.RUnlock()

	org, err := z.repo.FindOrganization(ctx, orgID)
	if err != nil {
		return "", err
	}

	zone := org.TimezoneID()
	if !validIANAZone(zone) {
		if z.onFallback != nil {
			z.onFallback(orgID)
		}
		zone = utcZone
	}

	z.mu.Lock()
	z.orgZone[orgID] = zone
	z.mu.Unlock()
	return zone, nil
}

// ZoneForArea resolves the area's override, inheriting the org's zone when
// the area carries none.
func (z *ZoneProvider) ZoneForArea(ctx context.Context, orgID types.OrgID, areaID types.AreaID) (string, error) {
	key := areaKey{org: orgID, area: areaID}

	z.mu.RLock()
	if zone, ok := z.areaZone[key]; ok {
		z.mu.RUnlock()
		return zone, nil
	}
	z.mu.RUnlock()

	area, err := z.repo.FindArea(ctx, orgID, areaID)
	if err != nil {
		return "", err
	}

	var zone string
	if area.TimezoneID() != nil && validIANAZone(*area.TimezoneID()) {
		zone = *area.TimezoneID()
	} else {
		zone, err = z.ZoneForOrg(ctx, orgID)
		if err != nil {
			return "", err
		}
	}

	z.mu.Lock()
	z.areaZone[key] = zone
	z.mu.Unlock()
	return zone, nil
}

// InvalidateOrg drops the cached org zone. Also drops every area entry for
// that org, since area resolution may have inherited it.
func (z *ZoneProvider) InvalidateOrg(orgID types.OrgID) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.orgZone, orgID)
	for k := range z.areaZone {
		if k.org == orgID {
			delete(z.areaZone, k)
		}
	}
}

// InvalidateArea drops the cached zone for a single (org, area) pair.
func (z *ZoneProvider) InvalidateArea(orgID types.OrgID, areaID types.AreaID) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.areaZone, areaKey{org: orgID, area: areaID})
}

func validIANAZone(zone string) bool {
	if zone == "" {
		return false
	}
	_, err := time.LoadLocation(zone)
	return err == nil
}

var _ domain.ZoneProvider = (*ZoneProvider)(nil)
