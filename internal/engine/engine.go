// Package engine implements the pure decision function: given a
// DecisionContext and the candidate rules a caller already fetched, it
// returns a DecisionOutput with no I/O, no DB access, and no clock reads —
// every timestamp the evaluation needs travels in on the context.
//
// DST note: daily windows are evaluated by converting occurredAtUtc to
// local wall-clock time via time.Time.In(loc). That conversion is always
// single-valued in Go — an instant never maps to an ambiguous or skipped
// local time, only the reverse (local-to-instant) conversion can be
// ambiguous, and this engine never performs that reverse conversion. So
// there is no DST edge case to special-case here.
package engine

import (
	"sort"
	"time"

	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	rules "accessctl/internal/rules/domain"
)

// Result is the evaluation outcome category.
type Result string

const (
	ResultAllow Result = "ALLOW"
	ResultDeny  Result = "DENY"
	ResultError Result = "ERROR"
)

// SuggestedCommand is the device action a decision implies.
type SuggestedCommand string

const (
	CommandOpenDoor      SuggestedCommand = "OPEN_DOOR"
	CommandDenyWithSignal SuggestedCommand = "DENY_WITH_SIGNAL"
)

const (
	ReasonDeviceInactive = "DEVICE_INACTIVE"
	ReasonSubjectUnknown = "SUBJECT_UNKNOWN"
	ReasonAllowDefault   = "ALLOW"
	ReasonPolicyError    = "POLICY_ERROR"
)

// DecisionContext carries everything the engine needs to evaluate one
// access attempt. Every field must be fully populated by the caller;
// assembling it (including effective-zone resolution) is the attempt
// service's job, not the engine's.
type DecisionContext struct {
	OrgID         types.OrgID
	AttemptID     types.AttemptID
	AreaID        types.AreaID
	Device        directory.Snapshot
	SubjectType   directory.SubjectType
	PassDirection directory.PassDirection
	AuthMethod    directory.AuthMethod
	OccurredAtUTC time.Time
	EffectiveZone string
	OrgDefault    rules.Action
}

// DecisionOutput is the engine's verdict.
type DecisionOutput struct {
	Result            Result
	ReasonCode        string
	ReasonDetail      string
	DecidedAtUTC      time.Time
	SuggestedCommand  *SuggestedCommand
	SuggestedMessage  *string
	ExpiresAtUTC      *time.Time
}

func cmd(c SuggestedCommand) *SuggestedCommand { return &c }

// Evaluate runs the full decision pipeline: preconditions, device/subject
// shortcuts, then in-memory candidate filtering and ordering.
func Evaluate(ctx DecisionContext, candidates []*rules.Rule) DecisionOutput {
	now := ctx.OccurredAtUTC

	if ctx.OrgID.IsEmpty() || ctx.AttemptID.String() == "" || ctx.AreaID.IsEmpty() ||
		ctx.PassDirection == "" || ctx.AuthMethod == "" ||
		ctx.Device.ID.IsEmpty() || ctx.Device.OrgID.IsEmpty() || ctx.Device.AreaID.IsEmpty() {
		return DecisionOutput{Result: ResultError, ReasonCode: ReasonPolicyError, DecidedAtUTC: now}
	}

	if !ctx.Device.Active {
		return DecisionOutput{
			Result: ResultDeny, ReasonCode: ReasonDeviceInactive, DecidedAtUTC: now,
			SuggestedCommand: cmd(CommandDenyWithSignal),
		}
	}

	if ctx.SubjectType == "" || ctx.SubjectType == directory.SubjectTypeUnknown {
		return DecisionOutput{
			Result: ResultDeny, ReasonCode: ReasonSubjectUnknown, DecidedAtUTC: now,
			SuggestedCommand: cmd(CommandDenyWithSignal),
		}
	}

	loc, err := time.LoadLocation(ctx.EffectiveZone)
	if err != nil {
		loc = time.UTC
	}

	surviving := filterCandidates(candidates, ctx, now, loc)
	orderCandidates(surviving)

	if len(surviving) == 0 {
		return defaultOutput(ctx.OrgDefault, now)
	}

	winner := surviving[0]
	return outputFromRule(winner, now)
}

// filterCandidates drops rules whose matchers, validity window, or daily
// window don't cover the intent. A nil matcher field is a wildcard.
func filterCandidates(candidates []*rules.Rule, ctx DecisionContext, now time.Time, loc *time.Location) []*rules.Rule {
	var out []*rules.Rule
	for _, r := range candidates {
		if r.State() != rules.StateActive {
			continue
		}
		if r.DeviceID() != nil && *r.DeviceID() != ctx.Device.ID {
			continue
		}
		if r.PassDirection() != nil && *r.PassDirection() != ctx.PassDirection {
			continue
		}
		if r.AuthMethod() != nil && *r.AuthMethod() != ctx.AuthMethod {
			continue
		}
		if v := r.Validity(); v != nil {
			if now.Before(v.ValidFromUTC) || now.After(v.ValidToUTC) {
				continue
			}
		}
		if d := r.Daily(); d != nil && !dailyWindowCovers(d, now, loc) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// dailyWindowCovers reports whether the local wall-clock time of instant t
// in loc falls within [fromLocal, toLocal), wrapping past midnight when
// fromLocal > toLocal.
func dailyWindowCovers(d *rules.DailyWindow, t time.Time, loc *time.Location) bool {
	from, errFrom := time.Parse("15:04", d.FromLocal)
	to, errTo := time.Parse("15:04", d.ToLocal)
	if errFrom != nil || errTo != nil {
		return false
	}

	local := t.In(loc)
	nowMinutes := local.Hour()*60 + local.Minute()
	fromMinutes := from.Hour()*60 + from.Minute()
	toMinutes := to.Hour()*60 + to.Minute()

	if fromMinutes <= toMinutes {
		return nowMinutes >= fromMinutes && nowMinutes < toMinutes
	}
	// Overnight window: spans midnight.
	return nowMinutes >= fromMinutes || nowMinutes < toMinutes
}

// orderCandidates sorts by priority DESC, specificity DESC, updatedAt DESC.
func orderCandidates(rs []*rules.Rule) {
	sort.SliceStable(rs, func(i, j int) bool { return less(rs[i], rs[j]) })
}

// less reports whether a should sort strictly before b.
func less(a, b *rules.Rule) bool {
	if a.Priority() != b.Priority() {
		return a.Priority() > b.Priority()
	}
	if a.Specificity() != b.Specificity() {
		return a.Specificity() > b.Specificity()
	}
	return a.UpdatedAt().After(b.UpdatedAt())
}

func outputFromRule(r *rules.Rule, now time.Time) DecisionOutput {
	out := DecisionOutput{DecidedAtUTC: now, ReasonCode: string(r.Action()), SuggestedMessage: r.Message()}
	if r.Action() == rules.ActionAllow {
		out.Result = ResultAllow
		out.SuggestedCommand = cmd(CommandOpenDoor)
	} else {
		out.Result = ResultDeny
		out.SuggestedCommand = cmd(CommandDenyWithSignal)
	}
	return out
}

func defaultOutput(orgDefault rules.Action, now time.Time) DecisionOutput {
	if orgDefault == rules.ActionDeny {
		return DecisionOutput{
			Result: ResultDeny, ReasonCode: "DENY", DecidedAtUTC: now,
			SuggestedCommand: cmd(CommandDenyWithSignal),
		}
	}
	return DecisionOutput{
		Result: ResultAllow, ReasonCode: ReasonAllowDefault, DecidedAtUTC: now,
		SuggestedCommand: cmd(CommandOpenDoor),
	}
}
