// Package postgres implements the audit trail's storage layer.
package postgres

import (
	"context"

	"accessctl/internal/audit/domain"
	"accessctl/internal/common/dbx"
)

// Repository implements domain.Repository against access_control.audit_logs.
type Repository struct {
	db dbx.Executor
}

// NewRepository creates a Repository bound to db, normally the pool itself
// since the audit consumer never shares a transaction with anything else.
func NewRepository(db dbx.Executor) *Repository {
	return &Repository{db: db}
}

// Save inserts log, relying on ON CONFLICT DO NOTHING against the unique
// (org_id, event_key) index for dedup, so a redelivered bus message never
// produces a second row and no error-code introspection is needed.
func (r *Repository) Save(ctx context.Context, log *domain.AuditLog) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO access_control.audit_logs (
			id, org_id, event_key, event_type, aggregate_type, aggregate_id,
			source_event_id, payload, occurred_at, recorded_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (org_id, event_key) DO NOTHING`,
		log.ID().String(), log.OrgID().String(), log.EventKey(), log.EventType(),
		log.AggregateType(), log.AggregateID(), log.SourceEventID(), []byte(log.Payload()),
		log.OccurredAt(), log.RecordedAt(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ domain.Repository = (*Repository)(nil)
