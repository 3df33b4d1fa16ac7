package repository

import (
	"context"
	"fmt"

	"auth-session-engine/internal/breach/domain"
	"auth-session-engine/internal/db"
)

type PostgresRepository struct {
	db db.DB
}

// NewPostgresRepository returns a breach version repository backed by the given db.
func NewPostgresRepository(database db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

// BumpGlobal advances the global scope version. The global row is seeded by
// the migrations and always exists.
func (r *PostgresRepository) BumpGlobal(ctx context.Context) (int, error) {
	const query = `
UPDATE breach_versions
SET prev_version = version,
    version = version + 1,
    bumped_at = now()
WHERE scope = $1
RETURNING version
`
	var version int
	if err := r.db.QueryRow(ctx, query, domain.GlobalScope).Scan(&version); err != nil {
		return 0, fmt.Errorf("bump global breach version: %w", err)
	}
	return version, nil
}

// BumpUser advances the user's scope version in a single upsert. A first bump
// starts from the global version so every stamp the user ever received is
// below the new value; later bumps take the greater of the user and global
// versions plus one.
func (r *PostgresRepository) BumpUser(ctx context.Context, userID string) (int, error) {
	const query = `
INSERT INTO breach_versions (scope, version, prev_version, bumped_at)
VALUES ($1,
        (SELECT version + 1 FROM breach_versions WHERE scope = 'global'),
        (SELECT version FROM breach_versions WHERE scope = 'global'),
        now())
ON CONFLICT (scope) DO UPDATE SET
    prev_version = breach_versions.version,
    version = GREATEST(breach_versions.version, (SELECT version FROM breach_versions WHERE scope = 'global')) + 1,
    bumped_at = now()
RETURNING version
`
	var version int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&version); err != nil {
		return 0, fmt.Errorf("bump user breach version: %w", err)
	}
	return version, nil
}

// GetScopes returns the global row plus the user's row when one exists.
// Returns an error only on database failures, not for a missing user row.
func (r *PostgresRepository) GetScopes(ctx context.Context, userID string) ([]domain.ScopeVersion, error) {
	const query = `
SELECT scope, version, prev_version, bumped_at
FROM breach_versions
WHERE scope IN ($1, $2)
`
	rows, err := r.db.Query(ctx, query, domain.GlobalScope, userID)
	if err != nil {
		return nil, fmt.Errorf("get breach scopes: %w", err)
	}
	defer rows.Close()

	var out []domain.ScopeVersion
	for rows.Next() {
		var sv domain.ScopeVersion
		if err := rows.Scan(&sv.Scope, &sv.Version, &sv.PrevVersion, &sv.BumpedAt); err != nil {
			return nil, fmt.Errorf("scan breach scope: %w", err)
		}
		out = append(out, sv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate breach scopes: %w", err)
	}
	return out, nil
}
