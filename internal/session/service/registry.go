package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-session-engine/internal/audit"
	auditdomain "auth-session-engine/internal/audit/domain"
	"auth-session-engine/internal/session/domain"
)

// SessionRepo is the minimal session repository needed by the registry.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session, maxActive int) (*domain.Session, error)
	Revoke(ctx context.Context, id, reason string) error
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)
	ListActive(ctx context.Context, userID string) ([]*domain.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// Registry creates, lists and revokes sessions, enforcing the per-user
// concurrent-session cap through the repository's eviction transaction.
type Registry struct {
	repo      SessionRepo
	recorder  audit.Recorder
	maxActive int
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistry returns a session registry. maxActive <= 0 disables the cap.
func NewRegistry(repo SessionRepo, recorder audit.Recorder, maxActive int, logger *zap.Logger) *Registry {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		repo:      repo,
		recorder:  recorder,
		maxActive: maxActive,
		logger:    logger,
		now:       time.Now,
	}
}

// Create registers a new session for the user. When the user is at the cap
// the oldest active session is evicted first and returned alongside the new
// one; eviction is a notice for the caller, never an error.
func (s *Registry) Create(ctx context.Context, userID, device, ip string) (*domain.Session, *domain.Session, error) {
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Device:    device,
		IPAddress: ip,
	}
	evicted, err := s.repo.Create(ctx, sess, s.maxActive)
	if err != nil {
		return nil, nil, err
	}

	if evicted != nil {
		s.logger.Info("session evicted at cap",
			zap.String("user_id", userID),
			zap.String("session_id", evicted.ID))
		s.recorder.Record(ctx, auditdomain.Event{
			Action:    auditdomain.ActionSessionEvicted,
			UserID:    userID,
			SessionID: evicted.ID,
			Reason:    domain.ReasonSessionLimitExceeded,
		})
	}
	s.recorder.Record(ctx, auditdomain.Event{
		Action:    auditdomain.ActionSessionCreated,
		UserID:    userID,
		SessionID: sess.ID,
		Outcome:   auditdomain.OutcomeSuccess,
		IP:        ip,
	})
	return sess, evicted, nil
}

// Revoke marks the session revoked and cascades to its live refresh tokens.
// An empty reason defaults to user_logout.
func (s *Registry) Revoke(ctx context.Context, sessionID, reason string) error {
	if reason == "" {
		reason = domain.ReasonUserLogout
	}
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.Revoke(ctx, sessionID, reason); err != nil {
		return err
	}

	userID := ""
	if sess != nil {
		userID = sess.UserID
	}
	s.recorder.Record(ctx, auditdomain.Event{
		Action:    auditdomain.ActionSessionRevoked,
		UserID:    userID,
		SessionID: sessionID,
		Reason:    reason,
	})
	return nil
}

// RevokeAllForUser revokes every active session and live refresh token for
// the user. Returns the number of sessions revoked; callers audit their own
// intent (logout-everywhere, theft response, breach rotation).
func (s *Registry) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	n, err := s.repo.RevokeAllForUser(ctx, userID, reason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("revoked all sessions for user",
			zap.String("user_id", userID),
			zap.String("reason", reason),
			zap.Int64("sessions", n))
	}
	return n, nil
}

// ListActive returns the user's unrevoked sessions, newest first.
func (s *Registry) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	return s.repo.ListActive(ctx, userID)
}

// Touch updates the session's last-seen timestamp. Best effort: failures are
// logged at debug and swallowed, the caller's operation never depends on it.
func (s *Registry) Touch(ctx context.Context, sessionID string) {
	if err := s.repo.Touch(ctx, sessionID, s.now().UTC()); err != nil {
		s.logger.Debug("session touch failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
