package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"accessctl/internal/common/dbx"
	"accessctl/internal/common/types"
	"accessctl/internal/tenancy/domain"
)

// Repository implements domain.Repository with hand-written SQL against
// dbx.Executor, so it runs against either a pool or an ambient transaction.
type Repository struct {
	db dbx.Executor
}

// NewRepository creates a new Repository.
func NewRepository(db dbx.Executor) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindOrganization(ctx context.Context, orgID types.OrgID) (*domain.Organization, error) {
	var (
		name, state, tz, defaultDecision string
		createdAt, updatedAt             time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT name, state, timezone_id, default_decision, created_at, updated_at
		FROM access_control.organizations
		WHERE id = $1`, orgID.String(),
	).Scan(&name, &state, &tz, &defaultDecision, &createdAt, &updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}

	return domain.ReconstructOrganization(orgID, name, state, tz, domain.Decision(defaultDecision), createdAt, updatedAt), nil
}

func (r *Repository) SaveOrganization(ctx context.Context, org *domain.Organization) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.organizations (id, name, state, timezone_id, default_decision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			state = EXCLUDED.state,
			timezone_id = EXCLUDED.timezone_id,
			default_decision = EXCLUDED.default_decision,
			updated_at = EXCLUDED.updated_at`,
		org.ID().String(), org.Name(), org.State(), org.TimezoneID(), string(org.DefaultDecision()),
		org.CreatedAt(), org.UpdatedAt(),
	)
	return err
}

func (r *Repository) FindArea(ctx context.Context, orgID types.OrgID, areaID types.AreaID) (*domain.Area, error) {
	var (
		name                  string
		imagePath, timezoneID *string
		createdAt, updatedAt  time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT name, image_path, timezone_id, created_at, updated_at
		FROM access_control.areas
		WHERE id = $1 AND org_id = $2`, areaID.String(), orgID.String(),
	).Scan(&name, &imagePath, &timezoneID, &createdAt, &updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAreaNotFound
	}
	if err != nil {
		return nil, err
	}

	return domain.ReconstructArea(areaID, orgID, name, imagePath, timezoneID, createdAt, updatedAt), nil
}

func (r *Repository) SaveArea(ctx context.Context, area *domain.Area) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.areas (id, org_id, name, image_path, timezone_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			image_path = EXCLUDED.image_path,
			timezone_id = EXCLUDED.timezone_id,
			updated_at = EXCLUDED.updated_at`,
		area.ID().String(), area.OrgID().String(), area.Name(), area.ImagePath(), area.TimezoneID(),
		area.CreatedAt(), area.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("save area: %w", err)
	}
	return nil
}

var _ domain.Repository = (*Repository)(nil)
