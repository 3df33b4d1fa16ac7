package service

import (
	"context"
	"errors"
	"time"

	"auth-session-engine/internal/breach/domain"

	"go.uber.org/zap"
)

// ErrScopeMissing is returned when the seeded global scope row cannot be
// found; verification fails closed rather than accepting unstamped tokens.
var ErrScopeMissing = errors.New("global breach scope row is missing")

// Store is the persistence the manager needs. Bumps always go to the
// durable store; reads may be served by a cache wrapper.
type Store interface {
	BumpGlobal(ctx context.Context) (int, error)
	BumpUser(ctx context.Context, userID string) (int, error)
	GetScopes(ctx context.Context, userID string) ([]domain.ScopeVersion, error)
}

// VersionReader is the read path. Satisfied by the repository and by the
// fail-open cache that wraps it.
type VersionReader interface {
	GetScopes(ctx context.Context, userID string) ([]domain.ScopeVersion, error)
}

// Invalidator drops cached scope rows after a bump. The cache implements it;
// a plain repository does not.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Manager owns breach token versions: durable monotonic counters per scope
// used to stamp and verify access tokens. It implements the issuer's
// VersionSource.
type Manager struct {
	store  Store
	reader VersionReader
	grace  time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewManager returns a Manager. reader may be nil, in which case reads go
// straight to the store. grace is how long the immediately preceding version
// of a bumped scope stays accepted; zero disables the window.
func NewManager(store Store, reader VersionReader, grace time.Duration, logger *zap.Logger) *Manager {
	if reader == nil {
		reader = store
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		reader: reader,
		grace:  grace,
		logger: logger,
		now:    time.Now,
	}
}

// CurrentFor returns the raw current version for the user:
// max(global, user). Used to stamp newly issued tokens so they survive the
// grace window of the bump that is being rolled out.
func (m *Manager) CurrentFor(ctx context.Context, userID string) (int, error) {
	scopes, err := m.reader.GetScopes(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(scopes) == 0 {
		return 0, ErrScopeMissing
	}
	current := 0
	for _, sv := range scopes {
		if sv.Version > current {
			current = sv.Version
		}
	}
	return current, nil
}

// MinAcceptedFor returns the lowest version stamp verification accepts for
// the user. A scope bumped within the grace window counts as its previous
// version, so tokens issued just before a bump keep working until the window
// closes. Grace never reaches further back than one version.
func (m *Manager) MinAcceptedFor(ctx context.Context, userID string) (int, error) {
	scopes, err := m.reader.GetScopes(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(scopes) == 0 {
		return 0, ErrScopeMissing
	}
	now := m.now()
	min := 0
	for _, sv := range scopes {
		if v := m.effectiveVersion(sv, now); v > min {
			min = v
		}
	}
	return min, nil
}

// BumpGlobal invalidates every outstanding access token (after grace) by
// advancing the global version. Returns the new version.
func (m *Manager) BumpGlobal(ctx context.Context) (int, error) {
	version, err := m.store.BumpGlobal(ctx)
	if err != nil {
		return 0, err
	}
	m.invalidate(ctx, "")
	m.logger.Info("breach version bumped",
		zap.String("scope", domain.GlobalScope),
		zap.Int("version", version))
	return version, nil
}

// BumpUser invalidates the user's outstanding access tokens (after grace) by
// advancing their scope version. Returns the new version.
func (m *Manager) BumpUser(ctx context.Context, userID string) (int, error) {
	version, err := m.store.BumpUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	m.invalidate(ctx, userID)
	m.logger.Info("breach version bumped",
		zap.String("scope", userID),
		zap.Int("version", version))
	return version, nil
}

func (m *Manager) effectiveVersion(sv domain.ScopeVersion, now time.Time) int {
	if m.grace <= 0 || sv.BumpedAt == nil {
		return sv.Version
	}
	if now.Before(sv.BumpedAt.Add(m.grace)) {
		return sv.PrevVersion
	}
	return sv.Version
}

func (m *Manager) invalidate(ctx context.Context, userID string) {
	if inv, ok := m.reader.(Invalidator); ok {
		inv.Invalidate(ctx, userID)
	}
}
