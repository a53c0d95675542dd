package dlq

import (
	"context"
	"time"

	"accessctl/internal/common/dbx"
)

// Repository persists parking-lot entries in Postgres.
type Repository struct {
	db dbx.Executor
}

// NewRepository creates a Repository bound to db.
func NewRepository(db dbx.Executor) *Repository {
	return &Repository{db: db}
}

// Park inserts a freshly terminated message.
func (r *Repository) Park(ctx context.Context, entry *Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_control.audit_dlq (
			id, subject, raw_payload, error_message, attempts, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.Subject, entry.RawPayload, entry.ErrorMessage,
		entry.Attempts, string(entry.Status), entry.CreatedAt, entry.UpdatedAt,
	)
	return err
}

// ClaimParked returns up to limit entries still awaiting their one retry
// (status PARKED), ordered oldest first.
func (r *Repository) ClaimParked(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, subject, raw_payload, error_message, attempts, status, created_at, updated_at
		FROM access_control.audit_dlq
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`,
		string(StatusParked), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e          Entry
			status     string
			createdAt  time.Time
			updatedAt  time.Time
		)
		if err := rows.Scan(&e.ID, &e.Subject, &e.RawPayload, &e.ErrorMessage, &e.Attempts, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		e.CreatedAt = createdAt
		e.UpdatedAt = updatedAt
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Depth counts entries still parked, for the DLQ-depth gauge operators watch.
func (r *Repository) Depth(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM access_control.audit_dlq WHERE status = $1`,
		string(StatusParked),
	).Scan(&n)
	return n, err
}

// MarkResolved records that a retried entry now processed successfully.
func (r *Repository) MarkResolved(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE access_control.audit_dlq SET status = $1, updated_at = $2 WHERE id = $3`,
		string(StatusResolved), now, id,
	)
	return err
}

// MarkExhausted records a spent retry that failed again: the entry becomes
// terminal (EXHAUSTED) and the reprocessor never claims it again.
func (r *Repository) MarkExhausted(ctx context.Context, id, errMessage string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE access_control.audit_dlq
		SET attempts = attempts + 1, error_message = $1, status = $2, updated_at = $3
		WHERE id = $4`,
		errMessage, string(StatusExhausted), now, id,
	)
	return err
}
