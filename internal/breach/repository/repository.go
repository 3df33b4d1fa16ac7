package repository

import (
	"context"

	"auth-session-engine/internal/breach/domain"
)

// Repository defines persistence for breach version scopes.
type Repository interface {
	// BumpGlobal advances the global version by one and returns the new value.
	BumpGlobal(ctx context.Context) (int, error)
	// BumpUser advances the user's version past both its own and the global
	// version, creating the scope row on first bump. Returns the new value.
	BumpUser(ctx context.Context, userID string) (int, error)
	// GetScopes returns the global row plus the user's row when one exists.
	GetScopes(ctx context.Context, userID string) ([]domain.ScopeVersion, error)
}
