package domain

import (
	"time"

	"accessctl/internal/common/types"
)

// Area is a logical zone (floor, gate) inside an organization. Its timezone
// override, when present, wins over the organization's.
type Area struct {
	id         types.AreaID
	orgID      types.OrgID
	name       string
	imagePath  *string
	timezoneID *string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewArea creates a new Area for the given organization.
func NewArea(id types.AreaID, orgID types.OrgID, name string, imagePath, timezoneID *string) *Area {
	now := time.Now().UTC()
	return &Area{
		id:         id,
		orgID:      orgID,
		name:       name,
		imagePath:  imagePath,
		timezoneID: timezoneID,
		createdAt:  now,
		updatedAt:  now,
	}
}

// ReconstructArea rebuilds an Area from persisted fields.
func ReconstructArea(
	id types.AreaID,
	orgID types.OrgID,
	name string,
	imagePath, timezoneID *string,
	createdAt, updatedAt time.Time,
) *Area {
	return &Area{
		id:         id,
		orgID:      orgID,
		name:       name,
		imagePath:  imagePath,
		timezoneID: timezoneID,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (a *Area) ID() types.AreaID        { return a.id }
func (a *Area) OrgID() types.OrgID      { return a.orgID }
func (a *Area) Name() string            { return a.name }
func (a *Area) ImagePath() *string      { return a.imagePath }
func (a *Area) TimezoneID() *string     { return a.timezoneID }
func (a *Area) CreatedAt() time.Time    { return a.createdAt }
func (a *Area) UpdatedAt() time.Time    { return a.updatedAt }
