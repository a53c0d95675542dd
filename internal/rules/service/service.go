// Package service implements the rule CRUD application layer:
// request/response DTOs, Atomic-wrapped mutations, and an outbox append in
// the same transaction as each domain write.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accessctl/internal/common/clock"
	"accessctl/internal/common/dbx"
	"accessctl/internal/common/ids"
	"accessctl/internal/common/logging"
	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	"accessctl/internal/rules/cache"
	"accessctl/internal/rules/domain"
	outboxpg "accessctl/internal/outbox/postgres"
	"accessctl/internal/outbox/writer"
	rulespg "accessctl/internal/rules/postgres"
)

// Service orchestrates rule CRUD: validation, duplicate detection, and the
// PolicyChanged/ChangeRejected events that keep every node's cache and the
// audit trail honest.
type Service struct {
	atomic  *dbx.AtomicExecutor
	store   domain.Store
	devices directory.DeviceRepository
	cache   *cache.CandidatesCache
	clock   clock.Clock
}

// New creates a Service.
func New(atomic *dbx.AtomicExecutor, store domain.Store, devices directory.DeviceRepository, candidatesCache *cache.CandidatesCache, clk clock.Clock) *Service {
	return &Service{atomic: atomic, store: store, devices: devices, cache: candidatesCache, clock: clk}
}

// CreateRuleRequest describes a new rule.
type CreateRuleRequest struct {
	OrgID         types.OrgID
	AreaID        types.AreaID
	SubjectType   directory.SubjectType
	DeviceID      *types.DeviceID
	PassDirection *directory.PassDirection
	AuthMethod    *directory.AuthMethod
	Action        domain.Action
	Validity      *domain.ValidityWindow
	Daily         *domain.DailyWindow
	Priority      int
	Message       *string
}

// RuleResponse is the API-facing view of a Rule.
type RuleResponse struct {
	ID            string  `json:"id"`
	OrgID         string  `json:"orgId"`
	AreaID        string  `json:"areaId"`
	SubjectType   string  `json:"subjectType"`
	DeviceID      *string `json:"deviceId,omitempty"`
	PassDirection *string `json:"passDirection,omitempty"`
	AuthMethod    *string `json:"authMethod,omitempty"`
	Action        string  `json:"action"`
	Priority      int     `json:"priority"`
	State         string  `json:"state"`
	Message       *string `json:"message,omitempty"`
	CreatedAt     string  `json:"createdAtUtc"`
	UpdatedAt     string  `json:"updatedAtUtc"`
}

func toRuleResponse(r *domain.Rule) *RuleResponse {
	resp := &RuleResponse{
		ID:          r.ID().String(),
		OrgID:       r.OrgID().String(),
		AreaID:      r.AreaID().String(),
		SubjectType: string(r.SubjectType()),
		Action:      string(r.Action()),
		Priority:    r.Priority(),
		State:       string(r.State()),
		Message:     r.Message(),
		CreatedAt:   r.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt().Format(time.RFC3339),
	}
	if r.DeviceID() != nil {
		s := r.DeviceID().String()
		resp.DeviceID = &s
	}
	if r.PassDirection() != nil {
		s := string(*r.PassDirection())
		resp.PassDirection = &s
	}
	if r.AuthMethod() != nil {
		s := string(*r.AuthMethod())
		resp.AuthMethod = &s
	}
	return resp
}

// validateWindows enforces both-or-neither on each window's two fields and
// rejects a daily window whose from/to times are equal (it would never
// match, since the engine treats equal bounds as an empty span).
func validateWindows(daily *domain.DailyWindow, validity *domain.ValidityWindow) error {
	if daily != nil {
		if daily.FromLocal == "" || daily.ToLocal == "" {
			return domain.ErrInvalidDailyWindow
		}
		if _, err := time.Parse("15:04", daily.FromLocal); err != nil {
			return domain.ErrInvalidDailyWindow
		}
		if _, err := time.Parse("15:04", daily.ToLocal); err != nil {
			return domain.ErrInvalidDailyWindow
		}
		if daily.FromLocal == daily.ToLocal {
			return domain.ErrInvalidDailyWindow
		}
	}
	if validity != nil {
		if validity.ValidFromUTC.IsZero() || validity.ValidToUTC.IsZero() {
			return domain.ErrInvalidWindow
		}
	}
	return nil
}

// CreateRule validates and persists a new rule, publishing PolicyChanged on
// success. On a validation or duplicate rejection where the areaId is
// known, it best-effort publishes ChangeRejected — failure to do so never
// propagates to the caller.
func (s *Service) CreateRule(ctx context.Context, req CreateRuleRequest) (*RuleResponse, error) {
	if err := validateWindows(req.Daily, req.Validity); err != nil {
		s.publishRejectionBestEffort(ctx, req.OrgID, req.AreaID, "CREATE_RULE", err)
		return nil, err
	}

	if req.DeviceID != nil {
		device, err := s.devices.FindByID(ctx, req.OrgID, *req.DeviceID)
		if err != nil {
			return nil, err
		}
		if device.AreaID() != req.AreaID {
			s.publishRejectionBestEffort(ctx, req.OrgID, req.AreaID, "CREATE_RULE", domain.ErrDeviceNotInArea)
			return nil, domain.ErrDeviceNotInArea
		}
	}

	var result *RuleResponse
	err := s.atomic.Atomic(ctx, func(ctx context.Context, tx dbx.Executor) error {
		now := s.clock.Now()
		rule := domain.NewRule(
			types.RuleID(ids.NewV4()), req.OrgID, req.AreaID, req.SubjectType,
			req.DeviceID, req.PassDirection, req.AuthMethod, req.Action,
			req.Validity, req.Daily, req.Priority, req.Message, now,
		)

		store := rulespg.NewRuleStore(tx)
		dup, err := store.ExistsDuplicate(ctx, rule, nil)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateRule
		}

		if err := store.Save(ctx, rule); err != nil {
			return err
		}

		ob := writer.NewWriter(outboxpg.NewRepository(tx, nil), s.clock)
		event := domain.NewPolicyChanged(req.OrgID, req.AreaID, rule.ID(), domain.ChangeTypeCreated, now)
		if err := ob.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish policy changed: %w", err)
		}

		result = toRuleResponse(rule)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRule) {
			s.publishRejectionBestEffort(ctx, req.OrgID, req.AreaID, "CREATE_RULE", err)
		}
		return nil, err
	}

	s.cache.Invalidate(req.OrgID, req.AreaID, req.SubjectType)
	logging.InfoContext(ctx, "rule created", "rule_id", result.ID, "org_id", req.OrgID.String(), "area_id", req.AreaID.String())
	return result, nil
}

// UpdateRuleRequest carries the full replacement field set for a rule; an
// update rewrites every mutable field rather than patching.
type UpdateRuleRequest struct {
	OrgID         types.OrgID
	RuleID        types.RuleID
	SubjectType   directory.SubjectType
	DeviceID      *types.DeviceID
	PassDirection *directory.PassDirection
	AuthMethod    *directory.AuthMethod
	Action        domain.Action
	Validity      *domain.ValidityWindow
	Daily         *domain.DailyWindow
	Priority      int
	Message       *string
}

// UpdateRule validates and rewrites an existing rule in place (its area never
// changes), publishing PolicyChanged with change type UPDATED. The duplicate
// check excludes the rule itself so an update that keeps the matcher tuple
// intact doesn't collide with its own row.
func (s *Service) UpdateRule(ctx context.Context, req UpdateRuleRequest) (*RuleResponse, error) {
	if err := validateWindows(req.Daily, req.Validity); err != nil {
		return nil, err
	}

	var result *RuleResponse
	var areaID types.AreaID

	err := s.atomic.Atomic(ctx, func(ctx context.Context, tx dbx.Executor) error {
		store := rulespg.NewRuleStore(tx)
		existing, err := store.FindByID(ctx, req.OrgID, req.RuleID)
		if err != nil {
			return err
		}
		areaID = existing.AreaID()

		if req.DeviceID != nil {
			device, err := s.devices.FindByID(ctx, req.OrgID, *req.DeviceID)
			if err != nil {
				return err
			}
			if device.AreaID() != existing.AreaID() {
				return domain.ErrDeviceNotInArea
			}
		}

		now := s.clock.Now()
		updated := domain.ReconstructRule(
			existing.ID(), req.OrgID, existing.AreaID(), req.SubjectType,
			req.DeviceID, req.PassDirection, req.AuthMethod, req.Action,
			req.Validity, req.Daily, req.Priority, existing.State(),
			req.Message, existing.CreatedAt(), now,
		)

		id := updated.ID()
		dup, err := store.ExistsDuplicate(ctx, updated, &id)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateRule
		}

		if err := store.Save(ctx, updated); err != nil {
			return err
		}

		ob := writer.NewWriter(outboxpg.NewRepository(tx, nil), s.clock)
		event := domain.NewPolicyChanged(req.OrgID, updated.AreaID(), updated.ID(), domain.ChangeTypeUpdated, now)
		if err := ob.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish policy changed: %w", err)
		}

		result = toRuleResponse(updated)
		return nil
	})
	if err != nil {
		// areaID stays empty when the rule was never loaded; a rejection
		// event is only owed when the area is known.
		if !areaID.IsEmpty() {
			s.publishRejectionBestEffort(ctx, req.OrgID, areaID, "UPDATE_RULE", err)
		}
		return nil, err
	}

	// The old and new subjectType entries may differ; drop the whole area.
	s.cache.InvalidateArea(req.OrgID, areaID)
	logging.InfoContext(ctx, "rule updated", "rule_id", result.ID, "org_id", req.OrgID.String(), "area_id", areaID.String())
	return result, nil
}

// GetRule loads a single rule.
func (s *Service) GetRule(ctx context.Context, orgID types.OrgID, id types.RuleID) (*RuleResponse, error) {
	rule, err := s.store.FindByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return toRuleResponse(rule), nil
}

// ListRulesRequest narrows a listing.
type ListRulesRequest struct {
	OrgID  types.OrgID
	Filter domain.ListFilter
}

// ListRules returns rules matching the filter alongside the total count
// (ignoring pagination), for API pagination metadata.
func (s *Service) ListRules(ctx context.Context, req ListRulesRequest) ([]*RuleResponse, int, error) {
	rules, err := s.store.List(ctx, req.OrgID, req.Filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, req.OrgID, req.Filter)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]*RuleResponse, len(rules))
	for i, r := range rules {
		resp[i] = toRuleResponse(r)
	}
	return resp, total, nil
}

// SetRuleStateRequest toggles a rule's lifecycle state.
type SetRuleStateRequest struct {
	OrgID  types.OrgID
	RuleID types.RuleID
}

// ActivateRule transitions a rule back to ACTIVE.
func (s *Service) ActivateRule(ctx context.Context, req SetRuleStateRequest) (*RuleResponse, error) {
	return s.transitionRule(ctx, req, domain.ChangeTypeActivated, func(r *domain.Rule, now time.Time) { r.Activate(now) })
}

// InactivateRule soft-deletes a rule by transitioning it to INACTIVE.
func (s *Service) InactivateRule(ctx context.Context, req SetRuleStateRequest) (*RuleResponse, error) {
	return s.transitionRule(ctx, req, domain.ChangeTypeSoftDeleted, func(r *domain.Rule, now time.Time) { r.Inactivate(now) })
}

func (s *Service) transitionRule(ctx context.Context, req SetRuleStateRequest, changeType domain.ChangeType, apply func(*domain.Rule, time.Time)) (*RuleResponse, error) {
	var result *RuleResponse
	var areaID types.AreaID
	var subjectType directory.SubjectType

	err := s.atomic.Atomic(ctx, func(ctx context.Context, tx dbx.Executor) error {
		store := rulespg.NewRuleStore(tx)
		rule, err := store.FindByID(ctx, req.OrgID, req.RuleID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		apply(rule, now)
		if err := store.Save(ctx, rule); err != nil {
			return err
		}

		ob := writer.NewWriter(outboxpg.NewRepository(tx, nil), s.clock)
		event := domain.NewPolicyChanged(req.OrgID, rule.AreaID(), rule.ID(), changeType, now)
		if err := ob.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish policy changed: %w", err)
		}

		areaID = rule.AreaID()
		subjectType = rule.SubjectType()
		result = toRuleResponse(rule)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(req.OrgID, areaID, subjectType)
	return result, nil
}

// publishRejectionBestEffort publishes a ChangeRejected event outside any
// business transaction. Its own failure is logged and swallowed: a failed
// mutation must return its error to the caller regardless of whether the
// audit trail for the rejection could be recorded.
func (s *Service) publishRejectionBestEffort(ctx context.Context, orgID types.OrgID, areaID types.AreaID, operation string, cause error) {
	if areaID.IsEmpty() {
		return
	}
	err := s.atomic.Atomic(ctx, func(ctx context.Context, tx dbx.Executor) error {
		ob := writer.NewWriter(outboxpg.NewRepository(tx, nil), s.clock)
		event := domain.NewChangeRejected(orgID, areaID, operation, reasonCode(cause), 0, cause.Error(), s.clock.Now())
		return ob.Publish(ctx, event)
	})
	if err != nil {
		logging.ErrorContext(ctx, "failed to publish change rejected", "err", err, "cause", cause)
	}
}

func reasonCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateRule):
		return "DUPLICATE_RULE"
	case errors.Is(err, domain.ErrDeviceNotInArea):
		return "DEVICE_NOT_IN_AREA"
	case errors.Is(err, domain.ErrInvalidDailyWindow):
		return "INVALID_DAILY_WINDOW"
	case errors.Is(err, domain.ErrInvalidWindow):
		return "INVALID_WINDOW"
	default:
		return "REJECTED"
	}
}
