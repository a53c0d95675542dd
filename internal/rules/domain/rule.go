package domain

import (
	"time"

	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
)

// Action is the outcome a matching rule prescribes.
type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionDeny  Action = "DENY"
)

// State is the rule's lifecycle state; soft-delete transitions to INACTIVE.
type State string

const (
	StateActive   State = "ACTIVE"
	StateInactive State = "INACTIVE"
)

// DailyWindow is a local HH:mm-to-HH:mm window, evaluated in the area's
// effective zone. A window where From > To wraps past midnight.
type DailyWindow struct {
	FromLocal string // "HH:mm"
	ToLocal   string
}

// ValidityWindow is a UTC instant range during which the rule applies.
type ValidityWindow struct {
	ValidFromUTC time.Time
	ValidToUTC   time.Time
}

// Rule is a policy rule: when its matchers and windows cover an access
// attempt, its Action and Message become the decision.
type Rule struct {
	id            types.RuleID
	orgID         types.OrgID
	areaID        types.AreaID
	subjectType   directory.SubjectType
	deviceID      *types.DeviceID
	passDirection *directory.PassDirection
	authMethod    *directory.AuthMethod
	action        Action
	validity      *ValidityWindow
	daily         *DailyWindow
	priority      int
	state         State
	message       *string
	createdAt     time.Time
	updatedAt     time.Time
}

// NewRule constructs a new ACTIVE rule with the given fields.
func NewRule(
	id types.RuleID,
	orgID types.OrgID,
	areaID types.AreaID,
	subjectType directory.SubjectType,
	deviceID *types.DeviceID,
	passDirection *directory.PassDirection,
	authMethod *directory.AuthMethod,
	action Action,
	validity *ValidityWindow,
	daily *DailyWindow,
	priority int,
	message *string,
	now time.Time,
) *Rule {
	return &Rule{
		id: id, orgID: orgID, areaID: areaID, subjectType: subjectType,
		deviceID: deviceID, passDirection: passDirection, authMethod: authMethod,
		action: action, validity: validity, daily: daily, priority: priority,
		state: StateActive, message: message, createdAt: now, updatedAt: now,
	}
}

// ReconstructRule rebuilds a Rule from persisted fields.
func ReconstructRule(
	id types.RuleID, orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType,
	deviceID *types.DeviceID, passDirection *directory.PassDirection, authMethod *directory.AuthMethod,
	action Action, validity *ValidityWindow, daily *DailyWindow, priority int, state State,
	message *string, createdAt, updatedAt time.Time,
) *Rule {
	return &Rule{
		id: id, orgID: orgID, areaID: areaID, subjectType: subjectType,
		deviceID: deviceID, passDirection: passDirection, authMethod: authMethod,
		action: action, validity: validity, daily: daily, priority: priority,
		state: state, message: message, createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (r *Rule) ID() types.RuleID                        { return r.id }
func (r *Rule) OrgID() types.OrgID                      { return r.orgID }
func (r *Rule) AreaID() types.AreaID                    { return r.areaID }
func (r *Rule) SubjectType() directory.SubjectType      { return r.subjectType }
func (r *Rule) DeviceID() *types.DeviceID               { return r.deviceID }
func (r *Rule) PassDirection() *directory.PassDirection { return r.passDirection }
func (r *Rule) AuthMethod() *directory.AuthMethod       { return r.authMethod }
func (r *Rule) Action() Action                          { return r.action }
func (r *Rule) Validity() *ValidityWindow               { return r.validity }
func (r *Rule) Daily() *DailyWindow                     { return r.daily }
func (r *Rule) Priority() int                           { return r.priority }
func (r *Rule) State() State                            { return r.state }
func (r *Rule) Message() *string                        { return r.message }
func (r *Rule) CreatedAt() time.Time                    { return r.createdAt }
func (r *Rule) UpdatedAt() time.Time                    { return r.updatedAt }

// Specificity counts non-wildcard matchers and window fields present, used
// as the engine's ordering tiebreaker when priority ties.
func (r *Rule) Specificity() int {
	n := 0
	if r.deviceID != nil {
		n++
	}
	if r.passDirection != nil {
		n++
	}
	if r.authMethod != nil {
		n++
	}
	if r.validity != nil {
		n++
	}
	if r.daily != nil {
		n++
	}
	return n
}

// Activate transitions the rule to ACTIVE.
func (r *Rule) Activate(now time.Time) {
	r.state = StateActive
	r.updatedAt = now
}

// Inactivate soft-deletes the rule by transitioning to INACTIVE.
func (r *Rule) Inactivate(now time.Time) {
	r.state = StateInactive
	r.updatedAt = now
}
