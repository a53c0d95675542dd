package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"accessctl/internal/common/dbx"
	"accessctl/internal/common/types"
	"accessctl/internal/directory/domain"
)

// DeviceRepository implements domain.DeviceRepository with hand-written SQL
// against dbx.Executor.
type DeviceRepository struct {
	db dbx.Executor
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db dbx.Executor) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// FindByID loads a device scoped to its organization. Cross-tenant lookups
// are indistinguishable from not-found, never a distinct "forbidden" case.
func (r *DeviceRepository) FindByID(ctx context.Context, orgID types.OrgID, id types.DeviceID) (*domain.Device, error) {
	var (
		areaID               string
		name                 string
		model, externalID    *string
		active               bool
		createdAt, updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT area_id, name, model, external_id, active, created_at, updated_at
		FROM access_control.devices
		WHERE id = $1 AND org_id = $2`, id.String(), orgID.String(),
	).Scan(&areaID, &name, &model, &externalID, &active, &createdAt, &updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}

	return domain.ReconstructDevice(
		id, orgID, types.AreaID(areaID), name, model, externalID, active, createdAt, updatedAt,
	), nil
}

// Save upserts a device, preserving external_id's global uniqueness when present.
func (r *DeviceRepository) Save(ctx context.Context, device *domain.Device) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.devices (id, org_id, area_id, name, model, external_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			area_id = EXCLUDED.area_id,
			name = EXCLUDED.name,
			model = EXCLUDED.model,
			external_id = EXCLUDED.external_id,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		device.ID().String(), device.OrgID().String(), device.AreaID().String(), device.Name(),
		device.Model(), device.ExternalID(), device.Active(), device.CreatedAt(), device.UpdatedAt(),
	)
	return err
}

var _ domain.DeviceRepository = (*DeviceRepository)(nil)
