package domain

import (
	"context"

	"accessctl/internal/common/types"
)

// DeviceRepository reads/writes the device directory. CRUD beyond lookup is
// an external collaborator's concern — this repo only needs the read path
// attempt intake depends on, plus Save for seeding/tests.
type DeviceRepository interface {
	FindByID(ctx context.Context, orgID types.OrgID, id types.DeviceID) (*Device, error)
	Save(ctx context.Context, device *Device) error
}

// SubjectRepository reads the resident/visitor/group directory. As with
// devices, full CRUD lives in an external collaborator; the lookups here are
// what a subject-resolution step ahead of the engine needs, with Save
// counterparts for seeding and tests.
type SubjectRepository interface {
	FindResident(ctx context.Context, orgID types.OrgID, id types.SubjectID) (*Resident, error)
	SaveResident(ctx context.Context, resident *Resident) error
	FindVisitor(ctx context.Context, orgID types.OrgID, id types.SubjectID) (*PreauthorizedVisitor, error)
	SaveVisitor(ctx context.Context, visitor *PreauthorizedVisitor) error
	FindGroup(ctx context.Context, orgID types.OrgID, id types.SubjectID) (*Group, error)
	SaveGroup(ctx context.Context, group *Group) error
	// IsGroupMember reports whether memberID belongs to the group, scoped to
	// the tenant so cross-org membership can never leak.
	IsGroupMember(ctx context.Context, orgID types.OrgID, groupID, memberID types.SubjectID) (bool, error)
}
