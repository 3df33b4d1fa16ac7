package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"auth-session-engine/internal/db"
	"auth-session-engine/internal/session/domain"
)

type PostgresRepository struct {
	db db.DB
}

// NewPostgresRepository returns a session repository backed by the given db.
func NewPostgresRepository(database db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

const sessionColumns = `id, user_id, device, ip_address, created_at, last_seen_at, revoked_at, COALESCE(revoked_reason, '')`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// Create inserts the session, evicting the user's oldest active session when
// the cap is reached. The user row is locked first so two concurrent logins
// cannot both pass the cap check; the whole sequence is one transaction.
// maxActive <= 0 disables the cap.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session, maxActive int) (*domain.Session, error) {
	var evicted *domain.Session
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, s.UserID).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return db.ErrNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		if maxActive > 0 {
			rows, err := tx.Query(ctx,
				`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND revoked_at IS NULL ORDER BY created_at`,
				s.UserID)
			if err != nil {
				return fmt.Errorf("list active sessions: %w", err)
			}
			active, err := collectSessions(rows)
			if err != nil {
				return err
			}
			if len(active) >= maxActive {
				oldest := active[0]
				n, err := revokeSessionTx(ctx, tx, oldest.ID, domain.ReasonSessionLimitExceeded)
				if err != nil {
					return err
				}
				// Zero rows means a concurrent revoke beat the eviction;
				// the cap holds either way, so only report a real eviction.
				if n > 0 {
					oldest.RevokedReason = domain.ReasonSessionLimitExceeded
					evicted = oldest
				}
			}
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO sessions (id, user_id, device, ip_address) VALUES ($1, $2, $3, $4) RETURNING created_at, last_seen_at`,
			s.ID, s.UserID, s.Device, s.IPAddress).Scan(&s.CreatedAt, &s.LastSeenAt)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// Revoke marks the session revoked and revokes its live refresh tokens in
// the same transaction. Returns db.ErrNotFound when no active session
// matches id.
func (r *PostgresRepository) Revoke(ctx context.Context, id, reason string) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		n, err := revokeSessionTx(ctx, tx, id, reason)
		if err != nil {
			return err
		}
		if n == 0 {
			return db.ErrNotFound
		}
		return nil
	})
}

// RevokeAllForUser revokes every active session and live refresh token for
// the user in one transaction. Returns the number of sessions revoked;
// revoking a user with no active sessions is a no-op, not an error.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	var revoked int64
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE sessions SET revoked_at = now(), revoked_reason = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
			userID, reason)
		if err != nil {
			return fmt.Errorf("revoke user sessions: %w", err)
		}
		revoked = tag.RowsAffected()
		_, err = tx.Exec(ctx,
			`UPDATE refresh_tokens SET status = 'revoked', revoked_at = now(), revoked_reason = $2 WHERE user_id = $1 AND status = 'live'`,
			userID, reason)
		if err != nil {
			return fmt.Errorf("revoke user tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// ListActive returns the user's unrevoked sessions, newest first.
func (r *PostgresRepository) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND revoked_at IS NULL ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return collectSessions(rows)
}

// Touch sets last_seen_at on an active session. Returns db.ErrNotFound when
// the session is missing or already revoked; revoked rows stay immutable.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET last_seen_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// PurgeRevoked deletes sessions revoked before the cutoff; their refresh
// token rows go with them via the foreign key cascade.
func (r *PostgresRepository) PurgeRevoked(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE revoked_at IS NOT NULL AND revoked_at < $1`,
		before)
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// revokeSessionTx is the shared revoke-plus-cascade step. The session update
// is guarded on revoked_at IS NULL and the token update on status = 'live',
// so replaying it cannot overwrite an earlier reason. Returns the number of
// sessions updated; callers decide whether zero is an error.
func revokeSessionTx(ctx context.Context, tx pgx.Tx, id, reason string) (int64, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET revoked_at = now(), revoked_reason = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke session: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE refresh_tokens SET status = 'revoked', revoked_at = now(), revoked_reason = $2 WHERE session_id = $1 AND status = 'live'`,
		id, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke session tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Device, &s.IPAddress,
		&s.CreatedAt, &s.LastSeenAt, &s.RevokedAt, &s.RevokedReason)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]*domain.Session, error) {
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
