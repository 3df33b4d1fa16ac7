package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"auth-session-engine/internal/audit/domain"
	"auth-session-engine/internal/db"
)

type PostgresRepository struct {
	db db.DB
}

// NewPostgresRepository returns an audit event repository backed by the given db.
func NewPostgresRepository(database db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

// Insert persists one audit event. The event must have ID and OccurredAt
// set. Re-inserting an already stored ID is a no-op, so the worker's
// at-least-once redelivery and a concurrently enabled postgres sink cannot
// produce duplicate rows.
func (r *PostgresRepository) Insert(ctx context.Context, e *domain.Event) error {
	const query = `
INSERT INTO audit_events (id, occurred_at, action, user_id, session_id, outcome, reason, ip_address, metadata)
VALUES ($1, $2, $3, NULLIF($4, '')::uuid, NULLIF($5, '')::uuid, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING
`
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		var err error
		meta, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}
	_, err := r.db.Exec(ctx, query,
		e.ID, e.OccurredAt, e.Action, e.UserID, e.SessionID, e.Outcome, e.Reason, e.IP, meta)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns the user's audit events, newest first, paginated by
// limit and offset. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error) {
	const query = `
SELECT id, occurred_at, action, COALESCE(user_id::text, ''), COALESCE(session_id::text, ''), outcome, reason, ip_address, metadata
FROM audit_events
WHERE user_id = $1
ORDER BY occurred_at DESC
LIMIT $2 OFFSET $3
`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var meta []byte
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.Action, &e.UserID, &e.SessionID, &e.Outcome, &e.Reason, &e.IP, &meta); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
