package domain

import (
	"time"

	"accessctl/internal/common/types"
)

// Device is a physical access-control device (reader, gate controller).
type Device struct {
	id         types.DeviceID
	orgID      types.OrgID
	areaID     types.AreaID
	name       string
	model      *string
	externalID *string
	active     bool
	createdAt  time.Time
	updatedAt  time.Time
}

// NewDevice creates a new active Device.
func NewDevice(id types.DeviceID, orgID types.OrgID, areaID types.AreaID, name string, model, externalID *string) *Device {
	now := time.Now().UTC()
	return &Device{
		id:         id,
		orgID:      orgID,
		areaID:     areaID,
		name:       name,
		model:      model,
		externalID: externalID,
		active:     true,
		createdAt:  now,
		updatedAt:  now,
	}
}

// ReconstructDevice rebuilds a Device from persisted fields.
func ReconstructDevice(
	id types.DeviceID,
	orgID types.OrgID,
	areaID types.AreaID,
	name string,
	model, externalID *string,
	active bool,
	createdAt, updatedAt time.Time,
) *Device {
	return &Device{
		id: id, orgID: orgID, areaID: areaID, name: name,
		model: model, externalID: externalID, active: active,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (d *Device) ID() types.DeviceID   { return d.id }
func (d *Device) OrgID() types.OrgID   { return d.orgID }
func (d *Device) AreaID() types.AreaID { return d.areaID }
func (d *Device) Name() string         { return d.name }
func (d *Device) Model() *string       { return d.model }
func (d *Device) ExternalID() *string  { return d.externalID }
func (d *Device) Active() bool         { return d.active }
func (d *Device) CreatedAt() time.Time { return d.createdAt }
func (d *Device) UpdatedAt() time.Time { return d.updatedAt }

// Snapshot returns an immutable DTO carrying exactly the fields the
// decision engine needs — never the live aggregate, so the engine never
// reaches back across a component boundary for a lazy relation.
func (d *Device) Snapshot() Snapshot {
	return Snapshot{
		ID:     d.id,
		OrgID:  d.orgID,
		AreaID: d.areaID,
		Active: d.active,
	}
}

// Snapshot is the read-only view of a Device the engine consumes.
type Snapshot struct {
	ID     types.DeviceID
	OrgID  types.OrgID
	AreaID types.AreaID
	Active bool
}
