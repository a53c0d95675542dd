package domain

import (
	"time"

	"accessctl/internal/common/types"
)

// SubjectType enumerates the kinds of principal an access attempt can name.
type SubjectType string

const (
	SubjectTypeResident             SubjectType = "RESIDENT"
	SubjectTypePreauthorizedVisitor SubjectType = "PREAUTHORIZED_VISITOR"
	SubjectTypeGroupMember          SubjectType = "GROUP_MEMBER"
	SubjectTypeUnknown              SubjectType = "UNKNOWN"
)

// PassDirection describes which way a subject is moving through a device.
type PassDirection string

const (
	PassDirectionIn  PassDirection = "IN"
	PassDirectionOut PassDirection = "OUT"
)

// AuthMethod identifies how a subject presented themselves at a device.
type AuthMethod string

const (
	AuthMethodCard       AuthMethod = "CARD"
	AuthMethodBiometric  AuthMethod = "BIOMETRIC"
	AuthMethodPIN        AuthMethod = "PIN"
	AuthMethodQR         AuthMethod = "QR"
	AuthMethodRemote     AuthMethod = "REMOTE"
)

// SubjectState is the lifecycle state shared by residents, visitors, and groups.
type SubjectState string

const (
	SubjectStateActive   SubjectState = "ACTIVE"
	SubjectStateInactive SubjectState = "INACTIVE"
)

// Contact groups the optional reach-out fields shared by residents and
// visitors.
type Contact struct {
	Name  *string
	Phone *string
	Email *string
}

// Resident is a tenant-scoped occupant identified by a unique document.
// Its CRUD surface lives in an external collaborator system; this repo
// carries only the data model shape the rule/engine layer references by id.
type Resident struct {
	ID             types.SubjectID
	OrgID          types.OrgID
	DocumentKind   string
	DocumentNumber string
	Contact        Contact
	State          SubjectState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PreauthorizedVisitor is a tenant-scoped, time-bounded visitor grant.
type PreauthorizedVisitor struct {
	ID             types.SubjectID
	OrgID          types.OrgID
	DocumentKind   string
	DocumentNumber string
	Contact        Contact
	State          SubjectState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GroupKind distinguishes resident groups from visitor groups.
type GroupKind string

const (
	GroupKindResidents GroupKind = "RESIDENTS"
	GroupKindVisitors  GroupKind = "VISITORS"
)

// Group is a named, tenant-scoped collection of residents or visitors. Its
// name is unique per organization, compared case-insensitively.
type Group struct {
	ID        types.SubjectID
	OrgID     types.OrgID
	Name      string
	Kind      GroupKind
	State     SubjectState
	CreatedAt time.Time
	UpdatedAt time.Time
}
