package repository

import (
	"context"
	"time"

	"auth-session-engine/internal/refreshtoken/domain"
)

// Repository defines persistence for refresh tokens. The live → rotated
// transition is the one place the engine's theft detection depends on, so
// Rotate is the only method allowed to perform it.
type Repository interface {
	// GetByHash returns the token whose stored hash matches, or nil if none.
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// Insert persists a new live token (the first of a session's chain).
	Insert(ctx context.Context, t *domain.RefreshToken) error
	// Rotate atomically transitions the predecessor from live to rotated and
	// inserts the successor in the same transaction. Returns false with no
	// mutation when the predecessor was no longer live: the caller lost the
	// race and must re-read to pick the correct branch.
	Rotate(ctx context.Context, predecessorID string, successor *domain.RefreshToken) (bool, error)
	// RevokeBySession revokes the session's live token, if any. Returns the
	// number of rows revoked; zero is not an error.
	RevokeBySession(ctx context.Context, sessionID, reason string) (int64, error)
	// PurgeTerminal deletes rotated, revoked and expired rows whose terminal
	// moment is before the cutoff.
	PurgeTerminal(ctx context.Context, before time.Time) (int64, error)
}
