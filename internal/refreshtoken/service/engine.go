package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-session-engine/internal/audit"
	auditdomain "auth-session-engine/internal/audit/domain"
	"auth-session-engine/internal/refreshtoken/domain"
	"auth-session-engine/internal/security"
	sessiondomain "auth-session-engine/internal/session/domain"
)

// Sentinel errors for refresh rotation. Unknown and malformed secrets reuse
// security.ErrInvalidToken; expiry reuses security.ErrTokenExpired.
var (
	// ErrTokenReused marks a replay of an already-rotated secret: the theft
	// signal. By the time the caller sees it the user's sessions are gone.
	ErrTokenReused = errors.New("refresh token already used")
	// ErrTokenRevoked marks a secret whose record was revoked; this is an
	// already-handled terminal state and triggers no mass revocation.
	ErrTokenRevoked = errors.New("refresh token revoked")
)

// TokenRepo is the minimal refresh token repository needed by the engine.
type TokenRepo interface {
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	Insert(ctx context.Context, t *domain.RefreshToken) error
	Rotate(ctx context.Context, predecessorID string, successor *domain.RefreshToken) (bool, error)
	RevokeBySession(ctx context.Context, sessionID, reason string) (int64, error)
}

// SessionRevoker is the blast-radius hook for the theft response; the
// session registry satisfies it.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)
}

// VersionStamper supplies the breach version recorded on tokens at issuance
// time; the breach manager satisfies it.
type VersionStamper interface {
	CurrentFor(ctx context.Context, userID string) (int, error)
}

// Engine validates and rotates refresh tokens, and turns replay of a rotated
// secret into full revocation of the owning user's sessions.
type Engine struct {
	repo     TokenRepo
	sessions SessionRevoker
	versions VersionStamper
	recorder audit.Recorder
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine returns a refresh token engine. ttl is the lifetime granted to
// every token it issues.
func NewEngine(repo TokenRepo, sessions SessionRevoker, versions VersionStamper, recorder audit.Recorder, ttl time.Duration, logger *zap.Logger) *Engine {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		repo:     repo,
		sessions: sessions,
		versions: versions,
		recorder: recorder,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue mints the first refresh token of a session's chain. The returned
// plaintext secret is handed to the client exactly once and never stored.
func (e *Engine) Issue(ctx context.Context, userID, sessionID string) (string, *domain.RefreshToken, error) {
	version, err := e.versions.CurrentFor(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("version stamp: %w", err)
	}
	secret, hash, err := security.NewRefreshSecret()
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh secret: %w", err)
	}
	t := &domain.RefreshToken{
		ID:           uuid.NewString(),
		UserID:       userID,
		SessionID:    sessionID,
		TokenHash:    hash,
		Status:       domain.StatusLive,
		TokenVersion: version,
		ExpiresAt:    e.now().Add(e.ttl),
	}
	if err := e.repo.Insert(ctx, t); err != nil {
		return "", nil, err
	}
	return secret, t, nil
}

// Rotate exchanges a live refresh secret for a successor stamped with the
// owner's current breach version. Outcomes:
//   - unknown secret: security.ErrInvalidToken
//   - rotated secret: replay of a consumed token; every live token and
//     active session of the owner is revoked and ErrTokenReused returned
//   - revoked secret: ErrTokenRevoked
//   - live but expired: security.ErrTokenExpired
//   - live and current: the record is transitioned to rotated and a fresh
//     live successor returned with its plaintext secret
//
// Two concurrent presentations of one live secret race on the repository's
// conditional transition; the loser re-reads, finds the record rotated, and
// lands on the replay branch. Replaying an interrupted rotate is safe for
// the same reason.
func (e *Engine) Rotate(ctx context.Context, presentedSecret string) (string, *domain.RefreshToken, error) {
	hash := security.HashRefreshSecret(presentedSecret)

	// The transition guard only fails once the record is terminal, so this
	// loop runs at most twice.
	for {
		current, err := e.repo.GetByHash(ctx, hash)
		if err != nil {
			return "", nil, err
		}
		if current == nil {
			return "", nil, security.ErrInvalidToken
		}
		switch current.Status {
		case domain.StatusRotated:
			return "", nil, e.handleReuse(ctx, current)
		case domain.StatusRevoked:
			return "", nil, ErrTokenRevoked
		}
		if current.Expired(e.now()) {
			return "", nil, security.ErrTokenExpired
		}

		version, err := e.versions.CurrentFor(ctx, current.UserID)
		if err != nil {
			return "", nil, fmt.Errorf("version stamp: %w", err)
		}
		secret, successorHash, err := security.NewRefreshSecret()
		if err != nil {
			return "", nil, fmt.Errorf("generate refresh secret: %w", err)
		}
		successor := &domain.RefreshToken{
			ID:            uuid.NewString(),
			UserID:        current.UserID,
			SessionID:     current.SessionID,
			TokenHash:     successorHash,
			Status:        domain.StatusLive,
			TokenVersion:  version,
			RotationCount: current.RotationCount + 1,
			ExpiresAt:     e.now().Add(e.ttl),
		}
		rotated, err := e.repo.Rotate(ctx, current.ID, successor)
		if err != nil {
			return "", nil, err
		}
		if !rotated {
			continue
		}
		return secret, successor, nil
	}
}

// RevokeBySession kills the session's live token without touching the
// session itself; the next refresh then fails while the current access
// token runs out its short lifetime.
func (e *Engine) RevokeBySession(ctx context.Context, sessionID, reason string) error {
	n, err := e.repo.RevokeBySession(ctx, sessionID, reason)
	if err != nil {
		return err
	}
	if n > 0 {
		e.logger.Debug("revoked session refresh token",
			zap.String("session_id", sessionID),
			zap.String("reason", reason))
	}
	return nil
}

// handleReuse is the theft response: revoke everything the user holds, then
// report the replay. A failing cascade is logged and audited but the caller
// still sees ErrTokenReused; the replayed record stays terminal, so the next
// presentation retries the cascade.
func (e *Engine) handleReuse(ctx context.Context, t *domain.RefreshToken) error {
	revoked, err := e.sessions.RevokeAllForUser(ctx, t.UserID, sessiondomain.ReasonTokenReuseDetected)
	if err != nil {
		e.logger.Error("reuse cascade failed",
			zap.String("user_id", t.UserID),
			zap.String("token_id", t.ID),
			zap.Error(err))
	} else {
		e.logger.Warn("refresh token reuse detected",
			zap.String("user_id", t.UserID),
			zap.String("session_id", t.SessionID),
			zap.String("token_id", t.ID),
			zap.Int64("sessions_revoked", revoked))
	}
	e.recorder.Record(ctx, auditdomain.Event{
		Action:    auditdomain.ActionTokenReuseDetected,
		UserID:    t.UserID,
		SessionID: t.SessionID,
		Outcome:   auditdomain.OutcomeFailure,
		Metadata:  map[string]string{"sessions_revoked": strconv.FormatInt(revoked, 10)},
	})
	return ErrTokenReused
}
