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

// SubjectRepository implements domain.SubjectRepository over the residents,
// preauthorized_visitors, groups and group_members tables.
type SubjectRepository struct {
	db dbx.Executor
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(db dbx.Executor) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) FindResident(ctx context.Context, orgID types.OrgID, id types.SubjectID) (*domain.Resident, error) {
	var (
		documentKind, documentNumber, state     string
		contactName, contactPhone, contactEmail *string
		createdAt, updatedAt                    time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT document_kind, document_number, contact_name, contact_phone, contact_email,
			   state, created_at, updated_at
		FROM access_control.residents
		WHERE id = $1 AND org_id = $2`, id.String(), orgID.String(),
	).Scan(&documentKind, &documentNumber, &contactName, &contactPhone, &contactEmail, &state, &createdAt, &updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.Resident{
		ID: id, OrgID: orgID, DocumentKind: documentKind, DocumentNumber: documentNumber,
		Contact: domain.Contact{Name: contactName, Phone: contactPhone, Email: contactEmail},
		State:   domain.SubjectState(state), CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}

func (r *SubjectRepository) SaveResident(ctx context.Context, res *domain.Resident) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.residents (
			id, org_id, document_kind, document_number, contact_name, contact_phone,
			contact_email, state, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id, org_id) DO UPDATE SET
			document_kind = EXCLUDED.document_kind,
			document_number = EXCLUDED.document_number,
			contact_name = EXCLUDED.contact_name,
			contact_phone = EXCLUDED.contact_phone,
			contact_email = EXCLUDED.contact_email,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`,
		res.ID.String(), res.OrgID.String(), res.DocumentKind, res.DocumentNumber,
		res.Contact.Name, res.Contact.Phone, res.Contact.Email,
		string(res.State), res.CreatedAt, res.UpdatedAt,
	)
	return err
}

func (r *SubjectRepository) FindVisitor(ctx context.Context, orgID types.OrgID, id types.SubjectID) (*domain.PreauthorizedVisitor, error) {
	var (
		documentKind, documentNumber, state     string
		contactName, contactPhone, contactEmail *string
		createdAt, updatedAt                    time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT document_kind, document_number, contact_name, contact_phone, contact_email,
			   state, created_at, updated_at
		FROM access_control.preauthorized_visitors
		WHERE id = $1 AND org_id = $2`, id.String(), orgID.String(),
	).Scan(&documentKind, &documentNumber, &contactName, &contactPhone, &contactEmail, &state, &createdAt, &updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.PreauthorizedVisitor{
		ID: id, OrgID: orgID, DocumentKind: documentKind, DocumentNumber: documentNumber,
		Contact: domain.Contact{Name: contactName, Phone: contactPhone, Email: contactEmail},
		State:   domain.SubjectState(state), CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}

func (r *SubjectRepository) SaveVisitor(ctx context.Context, vis *domain.PreauthorizedVisitor) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.preauthorized_visitors (
			id, org_id, document_kind, document_number, contact_name, contact_phone,
			contact_email, state, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id, org_id) DO UPDATE SET
			document_kind = EXCLUDED.document_kind,
			document_number = EXCLUDED.document_number,
			contact_name = EXCLUDED.contact_name,
			contact_phone = EXCLUDED.contact_phone,
			contact_email = EXCLUDED.contact_email,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`,
		vis.ID.String(), vis.OrgID.String(), vis.DocumentKind, vis.DocumentNumber,
		vis.Contact.Name, vis.Contact.Phone, vis.Contact.Email,
		string(vis.State), vis.CreatedAt, vis.UpdatedAt,
	)
	return err
}

func (r *SubjectRepository) FindGroup(ctx context.Context, orgID types.OrgID, id types.SubjectID) (*domain.Group, error) {
	var (
		name, kind, state    string
		createdAt, updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT name, kind, state, created_at, updated_at
		FROM access_control.groups
		WHERE id = $1 AND org_id = $2`, id.String(), orgID.String(),
	).Scan(&name, &kind, &state, &createdAt, &updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.Group{
		ID: id, OrgID: orgID, Name: name, Kind: domain.GroupKind(kind),
		State: domain.SubjectState(state), CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}

func (r *SubjectRepository) SaveGroup(ctx context.Context, group *domain.Group) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.groups (id, org_id, name, kind, state, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id, org_id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`,
		group.ID.String(), group.OrgID.String(), group.Name, string(group.Kind),
		string(group.State), group.CreatedAt, group.UpdatedAt,
	)
	return err
}

func (r *SubjectRepository) IsGroupMember(ctx context.Context, orgID types.OrgID, groupID, memberID types.SubjectID) (bool, error) {
	var member bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM access_control.group_members
			WHERE group_id = $1 AND org_id = $2 AND member_id = $3
		)`, groupID.String(), orgID.String(), memberID.String(),
	).Scan(&member)
	return member, err
}

var _ domain.SubjectRepository = (*SubjectRepository)(nil)
