package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"accessctl/internal/common/dbx"
	"accessctl/internal/common/types"
	"accessctl/internal/outbox/domain"
)

// Repository implements domain.Repository with hand-written SQL covering
// the full claim/process/release state machine.
type Repository struct {
	db dbx.Executor
	// pool runs the dispatcher's statements (claim, ownership re-assertion,
	// save, lock release, maintenance and gauge queries) outside any ambient
	// transaction the caller may hold.
	pool *pgxpool.Pool
}

// NewRepository creates a Repository. db is used for Append (so it can
// enlist in an ambient transaction) and Reload; pool is used for the
// dispatcher's independent claim/process statements.
func NewRepository(db dbx.Executor, pool *pgxpool.Pool) *Repository {
	return &Repository{db: db, pool: pool}
}

func (r *Repository) Append(ctx context.Context, event *domain.Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.outbox_events (
			id, org_id, event_type, aggregate_type, aggregate_id, payload,
			status, attempts, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.ID.String(), event.OrgID.String(), event.EventType, event.AggregateType,
		event.AggregateID, event.Payload, string(event.Status), event.Attempts, event.CreatedAtUTC,
	)
	return err
}

// ClaimBatch runs the claim phase in its own short transaction: select up
// to limit ready rows with FOR UPDATE SKIP LOCKED, stamp the lock, commit.
func (r *Repository) ClaimBatch(ctx context.Context, now time.Time, lockTTL time.Duration, limit int, instanceID string) ([]types.EventID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockCutoff := now.Add(-lockTTL)
	rows, err := tx.Query(ctx, `
		SELECT id FROM access_control.outbox_events
		WHERE status = 'PENDING'
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		  AND (locked_at IS NULL OR locked_at < $2)
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED`,
		now, lockCutoff, limit,
	)
	if err != nil {
		return nil, err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE access_control.outbox_events
		SET locked_at = $1, locked_by = $2
		WHERE id = ANY($3)`,
		now, instanceID, ids,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	out := make([]types.EventID, len(ids))
	for i, id := range ids {
		out[i] = types.EventID(id)
	}
	return out, nil
}

func (r *Repository) Reload(ctx context.Context, id types.EventID) (*domain.Event, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, org_id, event_type, aggregate_type, aggregate_id, payload,
			   status, attempts, created_at, next_attempt_at, published_at,
			   locked_at, locked_by, last_error_code, last_error_http_status,
			   last_error_message, last_error_at
		FROM access_control.outbox_events
		WHERE id = $1`, id.String())
	return scanEvent(row)
}

// ReassertOwnership performs a compare-and-swap lock refresh: the update
// succeeds only if the row is still PENDING and either already locked by
// instanceID or the lock is absent/expired.
func (r *Repository) ReassertOwnership(ctx context.Context, id types.EventID, now time.Time, lockTTL time.Duration, instanceID string) error {
	lockCutoff := now.Add(-lockTTL)
	tag, err := r.pool.Exec(ctx, `
		UPDATE access_control.outbox_events
		SET locked_at = $1, locked_by = $2
		WHERE id = $3 AND status = 'PENDING'
		  AND (locked_by = $2 OR locked_at < $4 OR locked_at IS NULL)`,
		now, instanceID, id.String(), lockCutoff,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotOwned
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, event *domain.Event) error {
	var code, message string
	var httpStatus *int
	var errAt *time.Time
	if event.LastError != nil {
		code = event.LastError.Code
		message = event.LastError.Message
		httpStatus = event.LastError.HTTPStatus
		errAt = event.LastError.AtUTC
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE access_control.outbox_events
		SET status = $1, attempts = $2, next_attempt_at = $3, published_at = $4,
			last_error_code = NULLIF($5, ''), last_error_http_status = $6,
			last_error_message = NULLIF($7, ''), last_error_at = $8
		WHERE id = $9`,
		string(event.Status), event.Attempts, event.NextAttemptAtUTC, event.PublishedAtUTC,
		code, httpStatus, message, errAt, event.ID.String(),
	)
	return err
}

func (r *Repository) ReleaseLock(ctx context.Context, id types.EventID, instanceID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE access_control.outbox_events
		SET locked_at = NULL, locked_by = NULL
		WHERE id = $1 AND locked_by = $2`,
		id.String(), instanceID,
	)
	return err
}

func (r *Repository) ReleaseExpiredLocks(ctx context.Context, now time.Time, lockTTL time.Duration) (int, error) {
	lockCutoff := now.Add(-lockTTL)
	tag, err := r.pool.Exec(ctx, `
		UPDATE access_control.outbox_events
		SET locked_at = NULL, locked_by = NULL
		WHERE status = 'PENDING' AND locked_at IS NOT NULL AND locked_at < $1`,
		lockCutoff,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) CountByStatus(ctx context.Context, now time.Time, lockTTL time.Duration) (domain.Counts, error) {
	lockCutoff := now.Add(-lockTTL)
	var counts domain.Counts
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'PENDING' AND (locked_at IS NULL OR locked_at < $1)) AS ready,
			count(*) FILTER (WHERE status = 'PENDING' AND locked_at IS NOT NULL AND locked_at >= $1) AS inflight,
			count(*) FILTER (WHERE status = 'FAILED') AS failed
		FROM access_control.outbox_events`,
		lockCutoff,
	).Scan(&counts.Ready, &counts.Inflight, &counts.Failed)
	return counts, err
}

func (r *Repository) OldestAges(ctx context.Context, now time.Time, lockTTL time.Duration) (domain.Ages, error) {
	lockCutoff := now.Add(-lockTTL)
	var oldestReady, oldestInflight *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT
			min(created_at) FILTER (WHERE status = 'PENDING' AND (locked_at IS NULL OR locked_at < $1)),
			min(locked_at) FILTER (WHERE status = 'PENDING' AND locked_at IS NOT NULL AND locked_at >= $1)
		FROM access_control.outbox_events`,
		lockCutoff,
	).Scan(&oldestReady, &oldestInflight)
	if err != nil {
		return domain.Ages{}, err
	}

	var ages domain.Ages
	if oldestReady != nil {
		ages.OldestReady = now.Sub(*oldestReady)
	}
	if oldestInflight != nil {
		ages.OldestInflight = now.Sub(*oldestInflight)
	}
	return ages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var (
		id, orgID, eventType, aggType, aggID, status string
		payload                                      json.RawMessage
		attempts                                     int
		createdAt                                    time.Time
		nextAttempt, publishedAt, lockedAt, errAt     *time.Time
		lockedBy                                      *string
		errCode, errMessage                          *string
		errHTTPStatus                                 *int
	)

	err := row.Scan(
		&id, &orgID, &eventType, &aggType, &aggID, &payload,
		&status, &attempts, &createdAt, &nextAttempt, &publishedAt,
		&lockedAt, &lockedBy, &errCode, &errHTTPStatus, &errMessage, &errAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	ev := &domain.Event{
		ID: types.EventID(id), OrgID: types.OrgID(orgID), EventType: eventType,
		AggregateType: aggType, AggregateID: aggID, Payload: payload,
		Status: domain.Status(status), Attempts: attempts, CreatedAtUTC: createdAt,
		NextAttemptAtUTC: nextAttempt, PublishedAtUTC: publishedAt, LockedAtUTC: lockedAt,
	}
	if lockedBy != nil {
		ev.LockedBy = *lockedBy
	}
	if errCode != nil {
		ev.LastError = &domain.LastError{Code: *errCode, HTTPStatus: errHTTPStatus, AtUTC: errAt}
		if errMessage != nil {
			ev.LastError.Message = *errMessage
		}
	}
	return ev, nil
}

var _ domain.Repository = (*Repository)(nil)
