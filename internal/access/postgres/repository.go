package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"accessctl/internal/access/domain"
	"accessctl/internal/common/dbx"
	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
)

// Repository implements domain.Repository with hand-written SQL against the
// ambient transaction Executor, matching RuleStore's shape in the rules
// context.
type Repository struct {
	db dbx.Executor
}

// NewRepository creates a Repository bound to db (normally a pgx.Tx, since
// every mutating operation here runs inside the attempt service's single
// atomic transaction).
func NewRepository(db dbx.Executor) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByIdempotencyKey(ctx context.Context, orgID types.OrgID, idempotencyKey string) (*domain.AccessAttempt, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, device_id, area_id, subject_type, pass_direction, auth_method,
			   subject_id, idempotency_key, occurred_at, created_at, updated_at
		FROM access_control.access_attempts
		WHERE org_id = $1 AND idempotency_key = $2`,
		orgID.String(), idempotencyKey,
	)
	attempt, err := scanAttempt(row, orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, err
}

func (r *Repository) SaveAttempt(ctx context.Context, attempt *domain.AccessAttempt) error {
	var subjectID *string
	if attempt.SubjectID() != nil {
		s := attempt.SubjectID().String()
		subjectID = &s
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.access_attempts (
			id, org_id, device_id, area_id, subject_type, pass_direction, auth_method,
			subject_id, idempotency_key, occurred_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		attempt.ID().String(), attempt.OrgID().String(), attempt.DeviceID().String(), attempt.AreaID().String(),
		string(attempt.SubjectType()), string(attempt.PassDirection()), string(attempt.AuthMethod()),
		subjectID, attempt.IdempotencyKey(), attempt.OccurredAtUTC(), attempt.CreatedAt(), attempt.UpdatedAt(),
	)
	return err
}

func (r *Repository) FindDecisionByAttemptID(ctx context.Context, orgID types.OrgID, attemptID types.AttemptID) (*domain.Decision, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, result, reason_code, reason_detail, decided_at, expires_at, created_at, updated_at
		FROM access_control.decisions
		WHERE org_id = $1 AND attempt_id = $2`,
		orgID.String(), attemptID.String(),
	)
	decision, err := scanDecision(row, orgID, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	return decision, err
}

func (r *Repository) SaveDecision(ctx context.Context, decision *domain.Decision) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.decisions (
			id, org_id, attempt_id, result, reason_code, reason_detail,
			decided_at, expires_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		decision.ID().String(), decision.OrgID().String(), decision.AttemptID().String(),
		string(decision.Result()), decision.ReasonCode(), decision.ReasonDetail(),
		decision.DecidedAt(), decision.ExpiresAt(), decision.CreatedAt(), decision.UpdatedAt(),
	)
	return err
}

func (r *Repository) FindCommandByAttemptID(ctx context.Context, orgID types.OrgID, attemptID types.AttemptID) (*domain.DeviceCommand, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, device_id, command, message, state, idempotency_key, sent_at, created_at, updated_at
		FROM access_control.device_commands
		WHERE org_id = $1 AND attempt_id = $2`,
		orgID.String(), attemptID.String(),
	)
	command, err := scanCommand(row, orgID, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return command, err
}

func (r *Repository) SaveCommand(ctx context.Context, command *domain.DeviceCommand) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.device_commands (
			id, org_id, attempt_id, device_id, command, message, state,
			idempotency_key, sent_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		command.ID().String(), command.OrgID().String(), command.AttemptID().String(), command.DeviceID().String(),
		string(command.Command()), command.Message(), string(command.State()),
		command.IdempotencyKey(), command.SentAt(), command.CreatedAt(), command.UpdatedAt(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner, orgID types.OrgID) (*domain.AccessAttempt, error) {
	var (
		id, deviceID, areaID, subjectType, passDirection, authMethod, idempotencyKey string
		subjectID                                                                    *string
		occurredAt, createdAt, updatedAt                                             time.Time
	)
	if err := row.Scan(&id, &deviceID, &areaID, &subjectType, &passDirection, &authMethod,
		&subjectID, &idempotencyKey, &occurredAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var subjectIDValue *types.SubjectID
	if subjectID != nil {
		v := types.SubjectID(*subjectID)
		subjectIDValue = &v
	}
	return domain.ReconstructAccessAttempt(
		types.AttemptID(id), orgID, types.DeviceID(deviceID), types.AreaID(areaID),
		directory.SubjectType(subjectType), directory.PassDirection(passDirection), directory.AuthMethod(authMethod),
		subjectIDValue, idempotencyKey, occurredAt, createdAt, updatedAt,
	), nil
}

func scanDecision(row rowScanner, orgID types.OrgID, attemptID types.AttemptID) (*domain.Decision, error) {
	var (
		id, result, reasonCode                   string
		reasonDetail                              *string
		decidedAt, createdAt, updatedAt           time.Time
		expiresAt                                 *time.Time
	)
	if err := row.Scan(&id, &result, &reasonCode, &reasonDetail, &decidedAt, &expiresAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return domain.ReconstructDecision(
		types.DecisionID(id), orgID, attemptID, domain.Result(result),
		reasonCode, reasonDetail, decidedAt, expiresAt, createdAt, updatedAt,
	), nil
}

func scanCommand(row rowScanner, orgID types.OrgID, attemptID types.AttemptID) (*domain.DeviceCommand, error) {
	var (
		id, deviceID, command, state, idempotencyKey string
		message                                      *string
		sentAt                                       *time.Time
		createdAt, updatedAt                          time.Time
	)
	if err := row.Scan(&id, &deviceID, &command, &message, &state, &idempotencyKey, &sentAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return domain.ReconstructDeviceCommand(
		types.CommandID(id), orgID, attemptID, types.DeviceID(deviceID),
		domain.Command(command), message, domain.CommandState(state), idempotencyKey,
		sentAt, createdAt, updatedAt,
	), nil
}

var _ domain.Repository = (*Repository)(nil)
