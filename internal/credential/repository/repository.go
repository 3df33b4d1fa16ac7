package repository

import (
	"context"
	"time"

	"auth-session-engine/internal/credential/domain"
)

// Repository defines persistence for credentials and lockout state.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
	Create(ctx context.Context, c *domain.Credential) error
	// RecordFailure atomically increments the failure count (restarting from 1
	// when an elapsed lock is still on the row) and engages the lock when the
	// new count reaches threshold. Returns the new count and lock expiry.
	RecordFailure(ctx context.Context, userID string, threshold int, lockFor time.Duration) (int, *time.Time, error)
	// ResetFailures zeroes the failure count and clears any lock.
	ResetFailures(ctx context.Context, userID string) error
}
