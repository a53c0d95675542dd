// Package application implements the attempt-intake use case: the one
// operation that spans the directory, rules, tenancy and outbox bounded
// contexts in a single transaction. The idempotency check runs once outside
// the transaction as a fast path and again inside it to close the TOCTOU
// race; the domain writes and the outbox appends commit together.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"accessctl/internal/access/domain"
	accesspg "accessctl/internal/access/postgres"
	"accessctl/internal/common/clock"
	"accessctl/internal/common/dbx"
	"accessctl/internal/common/ids"
	"accessctl/internal/common/logging"
	"accessctl/internal/common/metrics"
	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	"accessctl/internal/engine"
	"accessctl/internal/rules/cache"
	rules "accessctl/internal/rules/domain"
	outboxpg "accessctl/internal/outbox/postgres"
	"accessctl/internal/outbox/writer"
	tenancy "accessctl/internal/tenancy/domain"
)

// Service orchestrates attempt intake: idempotency lookup, device/zone/
// candidate assembly, pure engine evaluation, and persistence of the
// attempt, its decision and its optional device command.
type Service struct {
	atomic     *dbx.AtomicExecutor
	repo       domain.Repository
	devices    directory.DeviceRepository
	orgs       tenancy.Repository
	zones      tenancy.ZoneProvider
	candidates *cache.CandidatesCache
	clock      clock.Clock
}

// New creates a Service. pool backs the outside-the-transaction idempotency
// fast path; atomic backs the transactional attempt-intake path.
func New(
	atomic *dbx.AtomicExecutor,
	pool dbx.Executor,
	devices directory.DeviceRepository,
	orgs tenancy.Repository,
	zones tenancy.ZoneProvider,
	candidates *cache.CandidatesCache,
	clk clock.Clock,
) *Service {
	return &Service{
		atomic: atomic, repo: accesspg.NewRepository(pool),
		devices: devices, orgs: orgs, zones: zones, candidates: candidates, clock: clk,
	}
}

// RegisterAttemptRequest is the attempt-intake request.
type RegisterAttemptRequest struct {
	OrgID          types.OrgID
	DeviceID       types.DeviceID
	SubjectType    directory.SubjectType
	PassDirection  directory.PassDirection
	AuthMethod     directory.AuthMethod
	SubjectID      *types.SubjectID
	IdempotencyKey string
	OccurredAtUTC  time.Time
}

// AttemptResponse is the intake response: the decision the engine reached
// plus the command suggested for the caller's device integration to carry
// out.
type AttemptResponse struct {
	AttemptID        string     `json:"attemptId"`
	Result           string     `json:"result"`
	ReasonCode       string     `json:"reasonCode"`
	ReasonDetail     *string    `json:"reasonDetail,omitempty"`
	DecidedAt        string     `json:"decidedAt"`
	ExpiresAt        *string    `json:"expiresAt,omitempty"`
	SuggestedCommand *string    `json:"suggestedCommand,omitempty"`
	Message          *string    `json:"message,omitempty"`
}

// RegisterAttempt is the single entry point for attempt intake.
func (s *Service) RegisterAttempt(ctx context.Context, req RegisterAttemptRequest) (*AttemptResponse, error) {
	if existing, err := s.replayIfExists(ctx, s.repo, req.OrgID, req.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		metrics.RecordIdempotencyCacheHit()
		return existing, nil
	}

	var result *AttemptResponse
	err := s.atomic.Atomic(ctx, func(ctx context.Context, tx dbx.Executor) error {
		txRepo := accesspg.NewRepository(tx)

		if existing, err := s.replayIfExists(ctx, txRepo, req.OrgID, req.IdempotencyKey); err != nil {
			return err
		} else if existing != nil {
			result = existing
			return nil
		}

		now := s.clock.Now()
		occurredAt := req.OccurredAtUTC
		if occurredAt.IsZero() {
			occurredAt = now
		}

		device, err := s.devices.FindByID(ctx, req.OrgID, req.DeviceID)
		if err != nil {
			return err
		}

		org, err := s.orgs.FindOrganization(ctx, req.OrgID)
		if err != nil {
			return err
		}

		zone, err := s.zones.ZoneForArea(ctx, req.OrgID, device.AreaID())
		if err != nil {
			return err
		}

		candidates, err := s.candidates.Get(ctx, req.OrgID, device.AreaID(), req.SubjectType)
		if err != nil {
			return err
		}

		attemptID := types.AttemptID(ids.NewV7())
		decisionCtx := engine.DecisionContext{
			OrgID:         req.OrgID,
			AttemptID:     attemptID,
			AreaID:        device.AreaID(),
			Device:        device.Snapshot(),
			SubjectType:   req.SubjectType,
			PassDirection: req.PassDirection,
			AuthMethod:    req.AuthMethod,
			OccurredAtUTC: occurredAt,
			EffectiveZone: zone,
			OrgDefault:    toRuleAction(org.DefaultDecision()),
		}

		output := engine.Evaluate(decisionCtx, candidates)

		attempt := domain.NewAccessAttempt(
			attemptID, req.OrgID, req.DeviceID, device.AreaID(),
			req.SubjectType, req.PassDirection, req.AuthMethod,
			req.SubjectID, req.IdempotencyKey, occurredAt, now,
		)
		if err := txRepo.SaveAttempt(ctx, attempt); err != nil {
			return err
		}

		decisionID := types.DecisionID(ids.NewV7())
		decision := domain.NewDecision(
			decisionID, req.OrgID, attemptID, domain.Result(output.Result),
			output.ReasonCode, reasonDetailPtr(output.ReasonDetail), output.DecidedAtUTC, output.ExpiresAtUTC, now,
		)
		if err := txRepo.SaveDecision(ctx, decision); err != nil {
			return err
		}

		ob := writer.NewWriter(outboxpg.NewRepository(tx, nil), s.clock)
		if err := ob.Publish(ctx, domain.NewAttemptRegistered(req.OrgID, attemptID, req.DeviceID, device.AreaID(), now)); err != nil {
			return fmt.Errorf("publish attempt registered: %w", err)
		}
		if err := ob.Publish(ctx, domain.NewDecisionTaken(req.OrgID, attemptID, decisionID, decision.Result(), decision.ReasonCode(), now)); err != nil {
			return fmt.Errorf("publish decision taken: %w", err)
		}

		var suggestedCommand *string
		var commandMessage *string
		if output.SuggestedCommand != nil {
			command := domain.Command(*output.SuggestedCommand)
			commandID := types.CommandID(ids.NewV7())
			deviceCommand := domain.NewDeviceCommand(commandID, req.OrgID, attemptID, req.DeviceID, command, output.SuggestedMessage, "cmd:"+attemptID.String(), now)
			if err := txRepo.SaveCommand(ctx, deviceCommand); err != nil {
				return err
			}
			if err := ob.Publish(ctx, domain.NewCommandEmitted(req.OrgID, attemptID, commandID, req.DeviceID, command, now)); err != nil {
				return fmt.Errorf("publish command emitted: %w", err)
			}
			cmd := string(command)
			suggestedCommand = &cmd
			commandMessage = output.SuggestedMessage
		}

		result = toAttemptResponse(attempt, decision, suggestedCommand, commandMessage)

		logging.InfoContext(ctx, "access attempt registered",
			"attempt_id", attemptID.String(), "org_id", req.OrgID.String(),
			"result", string(decision.Result()), "reason_code", decision.ReasonCode())

		return nil
	})
	if err != nil {
		// Two concurrent first-time requests with the same key can both pass
		// the pre-transaction check; the loser hits the unique constraint at
		// commit. Resolve the race by replaying the winner's stored result.
		if isUniqueViolation(err) {
			if existing, replayErr := s.replayIfExists(ctx, s.repo, req.OrgID, req.IdempotencyKey); replayErr == nil && existing != nil {
				metrics.RecordIdempotencyCacheHit()
				return existing, nil
			}
		}
		return nil, err
	}
	metrics.RecordAccessAttempt(strings.ToLower(result.Result))
	return result, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// replayIfExists returns the stored response for an already-processed
// idempotency key, or nil if none exists yet.
func (s *Service) replayIfExists(ctx context.Context, repo domain.Repository, orgID types.OrgID, idempotencyKey string) (*AttemptResponse, error) {
	attempt, err := repo.FindByIdempotencyKey(ctx, orgID, idempotencyKey)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decision, err := repo.FindDecisionByAttemptID(ctx, orgID, attempt.ID())
	if err != nil {
		return nil, err
	}
	command, err := repo.FindCommandByAttemptID(ctx, orgID, attempt.ID())
	if err != nil {
		return nil, err
	}

	var suggestedCommand *string
	var message *string
	if command != nil {
		cmd := string(command.Command())
		suggestedCommand = &cmd
		message = command.Message()
	}

	return toAttemptResponse(attempt, decision, suggestedCommand, message), nil
}

func toAttemptResponse(attempt *domain.AccessAttempt, decision *domain.Decision, suggestedCommand, message *string) *AttemptResponse {
	resp := &AttemptResponse{
		AttemptID:        attempt.ID().String(),
		Result:           string(decision.Result()),
		ReasonCode:       decision.ReasonCode(),
		ReasonDetail:     decision.ReasonDetail(),
		DecidedAt:        decision.DecidedAt().Format(time.RFC3339),
		SuggestedCommand: suggestedCommand,
		Message:          message,
	}
	if decision.ExpiresAt() != nil {
		expires := decision.ExpiresAt().Format(time.RFC3339)
		resp.ExpiresAt = &expires
	}
	return resp
}

func toRuleAction(d tenancy.Decision) rules.Action {
	if d == tenancy.DecisionDeny {
		return rules.ActionDeny
	}
	return rules.ActionAllow
}

func reasonDetailPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
