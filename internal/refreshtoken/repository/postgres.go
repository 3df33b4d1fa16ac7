package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"auth-session-engine/internal/db"
	"auth-session-engine/internal/refreshtoken/domain"
)

type PostgresRepository struct {
	db db.DB
}

// NewPostgresRepository returns a refresh token repository backed by the given db.
func NewPostgresRepository(database db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

const tokenColumns = `id, user_id, session_id, token_hash, status, token_version, rotation_count,
COALESCE(replaced_by::text, ''), created_at, expires_at, rotated_at, revoked_at, COALESCE(revoked_reason, '')`

// GetByHash returns the token whose stored hash matches, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	t, err := scanToken(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return t, nil
}

// Insert persists a new live token. The token must have ID, hashes and
// expiry set; created_at comes back from the database.
func (r *PostgresRepository) Insert(ctx context.Context, t *domain.RefreshToken) error {
	const query = `
INSERT INTO refresh_tokens (id, user_id, session_id, token_hash, status, token_version, rotation_count, expires_at)
VALUES ($1, $2, $3, $4, 'live', $5, $6, $7)
RETURNING created_at
`
	err := r.db.QueryRow(ctx, query,
		t.ID, t.UserID, t.SessionID, t.TokenHash, t.TokenVersion, t.RotationCount, t.ExpiresAt).
		Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	t.Status = domain.StatusLive
	return nil
}

// Rotate transitions the predecessor from live to rotated and inserts the
// successor, all in one transaction. The update is guarded on status = 'live'
// so exactly one concurrent caller can win it; a zero row count means the
// race was lost and nothing was written, reported as (false, nil).
func (r *PostgresRepository) Rotate(ctx context.Context, predecessorID string, successor *domain.RefreshToken) (bool, error) {
	rotated := false
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE refresh_tokens SET status = 'rotated', rotated_at = now(), replaced_by = $2 WHERE id = $1 AND status = 'live'`,
			predecessorID, successor.ID)
		if err != nil {
			return fmt.Errorf("mark rotated: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO refresh_tokens (id, user_id, session_id, token_hash, status, token_version, rotation_count, expires_at)
VALUES ($1, $2, $3, $4, 'live', $5, $6, $7)
RETURNING created_at`,
			successor.ID, successor.UserID, successor.SessionID, successor.TokenHash,
			successor.TokenVersion, successor.RotationCount, successor.ExpiresAt).
			Scan(&successor.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert successor: %w", err)
		}
		successor.Status = domain.StatusLive
		rotated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return rotated, nil
}

// RevokeBySession revokes the session's live token, if any. Revoking a
// session with no live token is a no-op, not an error.
func (r *PostgresRepository) RevokeBySession(ctx context.Context, sessionID, reason string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET status = 'revoked', revoked_at = now(), revoked_reason = $2 WHERE session_id = $1 AND status = 'live'`,
		sessionID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke session token: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeTerminal deletes rows that reached a terminal moment before the
// cutoff: rotated and revoked rows by when they got there, live rows by
// expiry.
func (r *PostgresRepository) PurgeTerminal(ctx context.Context, before time.Time) (int64, error) {
	const query = `
DELETE FROM refresh_tokens
WHERE (status = 'rotated' AND rotated_at < $1)
   OR (status = 'revoked' AND revoked_at < $1)
   OR (status = 'live' AND expires_at < $1)
`
	tag, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.SessionID, &t.TokenHash, &t.Status,
		&t.TokenVersion, &t.RotationCount, &t.ReplacedBy,
		&t.CreatedAt, &t.ExpiresAt, &t.RotatedAt, &t.RevokedAt, &t.RevokedReason)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
