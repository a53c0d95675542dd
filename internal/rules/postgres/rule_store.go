package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"accessctl/internal/common/dbx"
	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	"accessctl/internal/rules/domain"
)

// RuleStore implements domain.Store with hand-written SQL. NULL-aware
// duplicate detection uses IS NOT DISTINCT FROM since plain SQL equality
// never matches NULL = NULL, and NULL matchers/windows must behave as a
// distinguished wildcard value rather than "unknown".
type RuleStore struct {
	db dbx.Executor
}

// NewRuleStore creates a new RuleStore.
func NewRuleStore(db dbx.Executor) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) List(ctx context.Context, orgID types.OrgID, f domain.ListFilter) ([]*domain.Rule, error) {
	query := `
		SELECT id, area_id, subject_type, device_id, pass_direction, auth_method,
			   action, valid_from_utc, valid_to_utc, from_local, to_local,
			   priority, state, message, created_at, updated_at
		FROM access_control.rules
		WHERE org_id = $1`
	args := []any{orgID.String()}
	query, args = applyFilter(query, args, f)
	query += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows, orgID)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *RuleStore) Count(ctx context.Context, orgID types.OrgID, f domain.ListFilter) (int, error) {
	query := `SELECT count(*) FROM access_control.rules WHERE org_id = $1`
	args := []any{orgID.String()}
	query, args = applyFilter(query, args, f)

	var n int
	err := s.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (s *RuleStore) FindByID(ctx context.Context, orgID types.OrgID, id types.RuleID) (*domain.Rule, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, area_id, subject_type, device_id, pass_direction, auth_method,
			   action, valid_from_utc, valid_to_utc, from_local, to_local,
			   priority, state, message, created_at, updated_at
		FROM access_control.rules
		WHERE id = $1 AND org_id = $2`, id.String(), orgID.String())

	rule, err := scanRule(row, orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRuleNotFound
	}
	return rule, err
}

func (s *RuleStore) Save(ctx context.Context, rule *domain.Rule) error {
	var validFrom, validTo *time.Time
	if v := rule.Validity(); v != nil {
		validFrom, validTo = &v.ValidFromUTC, &v.ValidToUTC
	}
	var fromLocal, toLocal *string
	if d := rule.Daily(); d != nil {
		fromLocal, toLocal = &d.FromLocal, &d.ToLocal
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO access_control.rules (
			id, org_id, area_id, subject_type, device_id, pass_direction, auth_method,
			action, valid_from_utc, valid_to_utc, from_local, to_local,
			priority, state, message, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			area_id = EXCLUDED.area_id,
			subject_type = EXCLUDED.subject_type,
			device_id = EXCLUDED.device_id,
			pass_direction = EXCLUDED.pass_direction,
			auth_method = EXCLUDED.auth_method,
			action = EXCLUDED.action,
			valid_from_utc = EXCLUDED.valid_from_utc,
			valid_to_utc = EXCLUDED.valid_to_utc,
			from_local = EXCLUDED.from_local,
			to_local = EXCLUDED.to_local,
			priority = EXCLUDED.priority,
			state = EXCLUDED.state,
			message = EXCLUDED.message,
			updated_at = EXCLUDED.updated_at`,
		rule.ID().String(), rule.OrgID().String(), rule.AreaID().String(), string(rule.SubjectType()),
		deviceIDString(rule.DeviceID()), passDirectionString(rule.PassDirection()), authMethodString(rule.AuthMethod()),
		string(rule.Action()), validFrom, validTo, fromLocal, toLocal,
		rule.Priority(), string(rule.State()), rule.Message(), rule.CreatedAt(), rule.UpdatedAt(),
	)
	return err
}

// ExistsDuplicate enforces the rule uniqueness invariant: the tuple of
// matchers, action, and windows must be unique, where NULL is a
// distinguished wildcard value rather than SQL's "unknown" — hence IS NOT
// DISTINCT FROM throughout instead of `=`.
func (s *RuleStore) ExistsDuplicate(ctx context.Context, rule *domain.Rule, excludeID *types.RuleID) (bool, error) {
	var validFrom, validTo *time.Time
	if v := rule.Validity(); v != nil {
		validFrom, validTo = &v.ValidFromUTC, &v.ValidToUTC
	}
	var fromLocal, toLocal *string
	if d := rule.Daily(); d != nil {
		fromLocal, toLocal = &d.FromLocal, &d.ToLocal
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM access_control.rules
			WHERE org_id = $1
			  AND area_id = $2
			  AND subject_type = $3
			  AND device_id IS NOT DISTINCT FROM $4
			  AND pass_direction IS NOT DISTINCT FROM $5
			  AND auth_method IS NOT DISTINCT FROM $6
			  AND action = $7
			  AND valid_from_utc IS NOT DISTINCT FROM $8
			  AND valid_to_utc IS NOT DISTINCT FROM $9
			  AND from_local IS NOT DISTINCT FROM $10
			  AND to_local IS NOT DISTINCT FROM $11
			  AND state = 'ACTIVE'`
	args := []any{
		rule.OrgID().String(), rule.AreaID().String(), string(rule.SubjectType()),
		deviceIDString(rule.DeviceID()), passDirectionString(rule.PassDirection()), authMethodString(rule.AuthMethod()),
		string(rule.Action()), validFrom, validTo, fromLocal, toLocal,
	}
	if excludeID != nil {
		args = append(args, excludeID.String())
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query += ")"

	var exists bool
	err := s.db.QueryRow(ctx, query, args...).Scan(&exists)
	return exists, err
}

func (s *RuleStore) FindActiveRulesBase(ctx context.Context, orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType) ([]*domain.Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, area_id, subject_type, device_id, pass_direction, auth_method,
			   action, valid_from_utc, valid_to_utc, from_local, to_local,
			   priority, state, message, created_at, updated_at
		FROM access_control.rules
		WHERE org_id = $1 AND area_id = $2 AND subject_type = $3 AND state = 'ACTIVE'
		ORDER BY priority DESC, updated_at DESC`,
		orgID.String(), areaID.String(), string(subjectType),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows, orgID)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// FindCandidatesForIntent pushes wildcard-matcher filtering, UTC validity,
// and ordering into SQL for the cache-bypass path. Daily-window and
// timezone filtering still happen in the engine, since they require the
// effective zone, which this query does not have.
func (s *RuleStore) FindCandidatesForIntent(
	ctx context.Context, orgID types.OrgID, areaID types.AreaID, subjectType directory.SubjectType,
	deviceID types.DeviceID, direction directory.PassDirection, authMethod directory.AuthMethod, occurredAtUTC time.Time,
) ([]*domain.Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, area_id, subject_type, device_id, pass_direction, auth_method,
			   action, valid_from_utc, valid_to_utc, from_local, to_local,
			   priority, state, message, created_at, updated_at
		FROM access_control.rules
		WHERE org_id = $1 AND area_id = $2 AND subject_type = $3 AND state = 'ACTIVE'
		  AND (device_id IS NULL OR device_id = $4)
		  AND (pass_direction IS NULL OR pass_direction = $5)
		  AND (auth_method IS NULL OR auth_method = $6)
		  AND (valid_from_utc IS NULL OR valid_from_utc <= $7)
		  AND (valid_to_utc IS NULL OR valid_to_utc >= $7)
		ORDER BY priority DESC, updated_at DESC`,
		orgID.String(), areaID.String(), string(subjectType),
		deviceID.String(), string(direction), string(authMethod), occurredAtUTC,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows, orgID)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func applyFilter(query string, args []any, f domain.ListFilter) (string, []any) {
	if f.AreaID != nil {
		args = append(args, f.AreaID.String())
		query += fmt.Sprintf(" AND area_id = $%d", len(args))
	}
	if f.DeviceID != nil {
		args = append(args, f.DeviceID.String())
		query += fmt.Sprintf(" AND device_id = $%d", len(args))
	}
	if f.SubjectType != nil {
		args = append(args, string(*f.SubjectType))
		query += fmt.Sprintf(" AND subject_type = $%d", len(args))
	}
	if f.Direction != nil {
		args = append(args, string(*f.Direction))
		query += fmt.Sprintf(" AND pass_direction = $%d", len(args))
	}
	if f.AuthMethod != nil {
		args = append(args, string(*f.AuthMethod))
		query += fmt.Sprintf(" AND auth_method = $%d", len(args))
	}
	if f.Action != nil {
		args = append(args, string(*f.Action))
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if f.State != nil {
		args = append(args, string(*f.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	return query, args
}

// rowScanner is satisfied by both pgx.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner, orgID types.OrgID) (*domain.Rule, error) {
	var (
		id                                  string
		areaID, subjectType, action, state  string
		deviceID, passDirection, authMethod *string
		validFrom, validTo                  *time.Time
		fromLocal, toLocal, message         *string
		priority                            int
		createdAt, updatedAt                time.Time
	)

	err := row.Scan(
		&id, &areaID, &subjectType, &deviceID, &passDirection, &authMethod,
		&action, &validFrom, &validTo, &fromLocal, &toLocal,
		&priority, &state, &message, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	return buildRule(id, orgID, areaID, subjectType, deviceID, passDirection, authMethod,
		action, validFrom, validTo, fromLocal, toLocal, priority, state, message, createdAt, updatedAt), nil
}

func buildRule(
	id string, orgID types.OrgID, areaID, subjectType string,
	deviceID, passDirection, authMethod *string, action string,
	validFrom, validTo *time.Time, fromLocal, toLocal *string,
	priority int, state string, message *string, createdAt, updatedAt time.Time,
) *domain.Rule {
	var devID *types.DeviceID
	if deviceID != nil {
		d := types.DeviceID(*deviceID)
		devID = &d
	}
	var dir *directory.PassDirection
	if passDirection != nil {
		d := directory.PassDirection(*passDirection)
		dir = &d
	}
	var auth *directory.AuthMethod
	if authMethod != nil {
		a := directory.AuthMethod(*authMethod)
		auth = &a
	}
	var validity *domain.ValidityWindow
	if validFrom != nil && validTo != nil {
		validity = &domain.ValidityWindow{ValidFromUTC: *validFrom, ValidToUTC: *validTo}
	}
	var daily *domain.DailyWindow
	if fromLocal != nil && toLocal != nil {
		daily = &domain.DailyWindow{FromLocal: *fromLocal, ToLocal: *toLocal}
	}

	return domain.ReconstructRule(
		types.RuleID(id), orgID, types.AreaID(areaID), directory.SubjectType(subjectType),
		devID, dir, auth, domain.Action(action), validity, daily, priority,
		domain.State(state), message, createdAt, updatedAt,
	)
}

func deviceIDString(id *types.DeviceID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func passDirectionString(d *directory.PassDirection) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}

func authMethodString(a *directory.AuthMethod) *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}

var _ domain.Store = (*RuleStore)(nil)
