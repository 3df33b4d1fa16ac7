package repository

import (
	"context"
	"time"

	"auth-session-engine/internal/session/domain"
)

// Repository defines persistence for sessions. Revocation is a soft update;
// rows stay queryable until the retention janitor purges them.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Create inserts the session inside one transaction that also enforces
	// the per-user active-session cap. When the cap is reached the oldest
	// active session is revoked (reason session_limit_exceeded) together
	// with its live refresh tokens, and returned.
	Create(ctx context.Context, s *domain.Session, maxActive int) (*domain.Session, error)
	// Revoke marks the session revoked and revokes its live refresh tokens
	// in the same transaction. Returns db.ErrNotFound when the session does
	// not exist or is already revoked.
	Revoke(ctx context.Context, id, reason string) error
	// RevokeAllForUser revokes every active session and live refresh token
	// belonging to the user. Returns the number of sessions revoked.
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)
	// ListActive returns the user's unrevoked sessions, newest first.
	ListActive(ctx context.Context, userID string) ([]*domain.Session, error)
	// Touch updates last_seen_at on an active session.
	Touch(ctx context.Context, id string, at time.Time) error
	// PurgeRevoked deletes sessions revoked before the cutoff. Refresh
	// token rows cascade with them.
	PurgeRevoked(ctx context.Context, before time.Time) (int64, error)
}
