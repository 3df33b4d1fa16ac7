package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"auth-session-engine/internal/credential/domain"
	"auth-session-engine/internal/db"
)

type PostgresRepository struct {
	db db.DB
}

// NewPostgresRepository returns a credential repository backed by the given db.
func NewPostgresRepository(database db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

const credentialColumns = `id, email, password_hash, email_verified, roles, failed_attempts, locked_until, created_at, updated_at`

// GetByID returns the credential for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByEmail returns the credential for the normalized email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM users WHERE email = lower($1)`
	return r.scanOne(r.db.QueryRow(ctx, query, strings.TrimSpace(email)))
}

// Create persists the credential. The credential must have ID set; email is
// normalized to lowercase.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Credential) error {
	const query = `
INSERT INTO users (id, email, password_hash, email_verified, roles)
VALUES ($1, lower($2), $3, $4, $5)
`
	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}
	_, err := r.db.Exec(ctx, query, c.ID, c.Email, c.PasswordHash, c.EmailVerified, roles)
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// RecordFailure runs the lockout bookkeeping as one conditional update so two
// concurrent bad attempts can never both observe the pre-lock count. An
// elapsed lock restarts the count at 1. Returns the post-update count and
// lock expiry (nil unless this failure engaged the lock).
func (r *PostgresRepository) RecordFailure(ctx context.Context, userID string, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	const query = `
UPDATE users
SET failed_attempts = CASE
        WHEN locked_until IS NOT NULL AND locked_until <= now() THEN 1
        ELSE failed_attempts + 1
    END,
    locked_until = CASE
        WHEN (CASE WHEN locked_until IS NOT NULL AND locked_until <= now() THEN 1 ELSE failed_attempts + 1 END) >= $2
        THEN now() + ($3 * INTERVAL '1 second')
        ELSE NULL
    END,
    updated_at = now()
WHERE id = $1
RETURNING failed_attempts, locked_until
`
	seconds := int64(lockFor.Seconds())
	var attempts int
	var lockedUntil *time.Time
	err := r.db.QueryRow(ctx, query, userID, threshold, seconds).Scan(&attempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, db.ErrNotFound
		}
		return 0, nil, fmt.Errorf("record login failure: %w", err)
	}
	return attempts, lockedUntil, nil
}

// ResetFailures zeroes the failure count and clears any lock.
func (r *PostgresRepository) ResetFailures(ctx context.Context, userID string) error {
	const query = `
UPDATE users
SET failed_attempts = 0,
    locked_until = NULL,
    updated_at = now()
WHERE id = $1
`
	res, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	if res.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*domain.Credential, error) {
	var c domain.Credential
	err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.EmailVerified, &c.Roles,
		&c.FailedAttempts, &c.LockedUntil, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}
