package domain

import (
	"context"

	"accessctl/internal/common/types"
)

// ZoneProvider resolves the effective IANA timezone for an organization or
// an (org, area) pair. Implementations cache results and expose Invalidate
// hooks. Nothing in this repository calls the hooks: neither tenancy writes
// nor PolicyChanged consumption drop a cached zone.
type ZoneProvider interface {
	// ZoneForOrg resolves the organization's configured timezone, falling
	// back to UTC (and recording a metric) when absent or invalid.
	ZoneForOrg(ctx context.Context, orgID types.OrgID) (string, error)
	// ZoneForArea resolves the area's override, inheriting the
	// organization's zone when the area has none.
	ZoneForArea(ctx context.Context, orgID types.OrgID, areaID types.AreaID) (string, error)
	// InvalidateOrg drops the cached zone for an organization.
	InvalidateOrg(orgID types.OrgID)
	// InvalidateArea drops the cached zone for an (org, area) pair.
	InvalidateArea(orgID types.OrgID, areaID types.AreaID)
}

// Repository is the storage contract tenancy CRUD and the zone provider
// read from.
type Repository interface {
	FindOrganization(ctx context.Context, orgID types.OrgID) (*Organization, error)
	SaveOrganization(ctx context.Context, org *Organization) error
	FindArea(ctx context.Context, orgID types.OrgID, areaID types.AreaID) (*Area, error)
	SaveArea(ctx context.Context, area *Area) error
}
