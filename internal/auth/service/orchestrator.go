// Package service composes the engine's components behind the operations a
// transport layer calls: login, refresh, revocation, session and audit
// listing, breach bumps, and access token verification.
package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"auth-session-engine/internal/audit"
	auditdomain "auth-session-engine/internal/audit/domain"
	breachdomain "auth-session-engine/internal/breach/domain"
	creddomain "auth-session-engine/internal/credential/domain"
	credservice "auth-session-engine/internal/credential/service"
	tokendomain "auth-session-engine/internal/refreshtoken/domain"
	tokenservice "auth-session-engine/internal/refreshtoken/service"
	"auth-session-engine/internal/security"
	sessiondomain "auth-session-engine/internal/session/domain"
	"auth-session-engine/internal/telemetry"
)

// TokenPair is the credential set handed to a client on login and refresh.
type TokenPair struct {
	AccessToken     string
	RefreshSecret   string
	AccessExpiresAt time.Time
}

// EvictionNotice reports a session evicted to make room under the per-user
// cap. It accompanies a successful login and is never an error.
type EvictionNotice struct {
	SessionID string
	Reason    string
}

// SessionSummary is the caller-facing view of an active session.
type SessionSummary struct {
	ID         string
	Device     string
	IPAddress  string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// DeviceInfo describes the client establishing a session.
type DeviceInfo struct {
	Device string
	IP     string
}

// Verifier checks a password and reports the identity behind it.
type Verifier interface {
	Verify(ctx context.Context, userID, password string) (*credservice.VerifiedIdentity, error)
}

// Credentials reads user rows for role stamping on refresh; the credential
// repository satisfies it.
type Credentials interface {
	GetByID(ctx context.Context, id string) (*creddomain.Credential, error)
}

// Sessions is the session registry surface the orchestrator drives.
type Sessions interface {
	Create(ctx context.Context, userID, device, ip string) (*sessiondomain.Session, *sessiondomain.Session, error)
	Revoke(ctx context.Context, sessionID, reason string) error
	ListActive(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Touch(ctx context.Context, sessionID string)
}

// RefreshTokens is the refresh engine surface the orchestrator drives.
type RefreshTokens interface {
	Issue(ctx context.Context, userID, sessionID string) (string, *tokendomain.RefreshToken, error)
	Rotate(ctx context.Context, presentedSecret string) (string, *tokendomain.RefreshToken, error)
}

// AccessTokens issues and verifies stateless access tokens; the
// security.TokenIssuer satisfies it.
type AccessTokens interface {
	IssueAccess(ctx context.Context, userID, sessionID string, roles []string) (string, security.AccessClaims, error)
	VerifyAccess(ctx context.Context, token string) (security.AccessClaims, error)
}

// BreachVersions advances breach scope versions; the breach manager
// satisfies it.
type BreachVersions interface {
	BumpGlobal(ctx context.Context) (int, error)
	BumpUser(ctx context.Context, userID string) (int, error)
}

// ErrAuditLogUnavailable is returned by ListAuditEvents when the engine was
// built without audit persistence.
var ErrAuditLogUnavailable = errors.New("audit log is not configured")

// AuditLog reads persisted audit events; the audit repository satisfies it.
type AuditLog interface {
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*auditdomain.Event, error)
}

// Orchestrator wires the verifier, session registry, both token engines and
// the breach manager into the public auth operations.
type Orchestrator struct {
	verifier    Verifier
	credentials Credentials
	sessions    Sessions
	refresh     RefreshTokens
	access      AccessTokens
	breach      BreachVersions
	recorder    audit.Recorder
	auditLog    AuditLog
	metrics     *telemetry.Metrics
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewOrchestrator returns an Orchestrator with the given dependencies.
// metrics may be nil; recording is then a no-op. auditLog may be nil when
// the caller runs without audit persistence; ListAuditEvents then fails.
func NewOrchestrator(
	verifier Verifier,
	credentials Credentials,
	sessions Sessions,
	refresh RefreshTokens,
	access AccessTokens,
	breach BreachVersions,
	recorder audit.Recorder,
	auditLog AuditLog,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		verifier:    verifier,
		credentials: credentials,
		sessions:    sessions,
		refresh:     refresh,
		access:      access,
		breach:      breach,
		recorder:    recorder,
		auditLog:    auditLog,
		metrics:     metrics,
		tracer:      otel.Tracer("auth-session-engine/internal/auth"),
		logger:      logger,
	}
}

// CreateSession authenticates the user, registers a session under the cap and
// returns the initial token pair. A non-nil EvictionNotice reports the oldest
// session evicted to admit this one; it never accompanies an error.
func (o *Orchestrator) CreateSession(ctx context.Context, userID, password string, device DeviceInfo) (*TokenPair, *EvictionNotice, error) {
	ctx, span := o.tracer.Start(ctx, "auth.create_session")
	defer span.End()

	identity, err := o.verifier.Verify(ctx, userID, password)
	if err != nil {
		o.metrics.RecordLogin(ctx, loginOutcome(err))
		if errors.Is(err, credservice.ErrAccountLocked) {
			o.metrics.RecordLockout(ctx)
		}
		return nil, nil, err
	}

	sess, evicted, err := o.sessions.Create(ctx, identity.UserID, device.Device, device.IP)
	if err != nil {
		return nil, nil, err
	}
	refreshSecret, _, err := o.refresh.Issue(ctx, identity.UserID, sess.ID)
	if err != nil {
		o.abandonSession(ctx, sess.ID, err)
		return nil, nil, err
	}
	accessToken, claims, err := o.access.IssueAccess(ctx, identity.UserID, sess.ID, identity.Roles)
	if err != nil {
		o.abandonSession(ctx, sess.ID, err)
		return nil, nil, err
	}

	o.metrics.RecordLogin(ctx, "success")
	var notice *EvictionNotice
	if evicted != nil {
		o.metrics.RecordEviction(ctx)
		notice = &EvictionNotice{SessionID: evicted.ID, Reason: evicted.RevokedReason}
	}
	return &TokenPair{
		AccessToken:     accessToken,
		RefreshSecret:   refreshSecret,
		AccessExpiresAt: claims.ExpiresAt.Time,
	}, notice, nil
}

// Refresh rotates the presented refresh secret and issues a fresh access
// token stamped with the user's current roles and breach version. The old
// secret is dead on success; the new pair must replace it.
func (o *Orchestrator) Refresh(ctx context.Context, refreshSecret string) (*TokenPair, error) {
	ctx, span := o.tracer.Start(ctx, "auth.refresh")
	defer span.End()

	newSecret, token, err := o.refresh.Rotate(ctx, refreshSecret)
	if err != nil {
		if errors.Is(err, tokenservice.ErrTokenReused) {
			o.metrics.RecordReuseDetection(ctx)
		}
		return nil, err
	}

	cred, err := o.credentials.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	var roles []string
	if cred != nil {
		roles = cred.Roles
	}
	accessToken, claims, err := o.access.IssueAccess(ctx, token.UserID, token.SessionID, roles)
	if err != nil {
		return nil, err
	}

	o.sessions.Touch(ctx, token.SessionID)
	o.metrics.RecordRotation(ctx)
	o.recorder.Record(ctx, auditdomain.Event{
		Action:    auditdomain.ActionTokenRefreshed,
		UserID:    token.UserID,
		SessionID: token.SessionID,
		Outcome:   auditdomain.OutcomeSuccess,
	})
	return &TokenPair{
		AccessToken:     accessToken,
		RefreshSecret:   newSecret,
		AccessExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// RevokeSession revokes the session and its live refresh tokens. An empty
// reason records a user logout.
func (o *Orchestrator) RevokeSession(ctx context.Context, sessionID, reason string) error {
	ctx, span := o.tracer.Start(ctx, "auth.revoke_session")
	defer span.End()

	return o.sessions.Revoke(ctx, sessionID, reason)
}

// ListSessions returns the user's active sessions, newest first.
func (o *Orchestrator) ListSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	ctx, span := o.tracer.Start(ctx, "auth.list_sessions")
	defer span.End()

	sessions, err := o.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:         s.ID,
			Device:     s.Device,
			IPAddress:  s.IPAddress,
			CreatedAt:  s.CreatedAt,
			LastSeenAt: s.LastSeenAt,
		})
	}
	return summaries, nil
}

// ListAuditEvents returns the user's stored audit events, newest first.
// limit <= 0 uses a page of 50.
func (o *Orchestrator) ListAuditEvents(ctx context.Context, userID string, limit, offset int32) ([]*auditdomain.Event, error) {
	ctx, span := o.tracer.Start(ctx, "auth.list_audit_events")
	defer span.End()

	if o.auditLog == nil {
		return nil, ErrAuditLogUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return o.auditLog.ListByUser(ctx, userID, limit, offset)
}

// BumpBreachVersion advances the breach version for scope: "global" (or
// empty) hits every user, anything else is treated as a user id. Returns the
// new version. Outstanding access tokens below it go stale once the grace
// window closes; refresh tokens keep working.
func (o *Orchestrator) BumpBreachVersion(ctx context.Context, scope string) (int, error) {
	ctx, span := o.tracer.Start(ctx, "auth.bump_breach_version")
	defer span.End()

	kind := "user"
	userID := scope
	var (
		version int
		err     error
	)
	if scope == "" || scope == breachdomain.GlobalScope {
		kind = "global"
		userID = ""
		version, err = o.breach.BumpGlobal(ctx)
	} else {
		version, err = o.breach.BumpUser(ctx, scope)
	}
	if err != nil {
		return 0, err
	}

	o.metrics.RecordVersionBump(ctx, kind)
	o.recorder.Record(ctx, auditdomain.Event{
		Action:  auditdomain.ActionBreachVersionBumped,
		UserID:  userID,
		Outcome: auditdomain.OutcomeSuccess,
		Metadata: map[string]string{
			"scope":   kind,
			"version": strconv.Itoa(version),
		},
	})
	return version, nil
}

// VerifyAccess validates an access token's signature, expiry and version
// stamp, returning its claims.
func (o *Orchestrator) VerifyAccess(ctx context.Context, token string) (security.AccessClaims, error) {
	ctx, span := o.tracer.Start(ctx, "auth.verify_access")
	defer span.End()

	return o.access.VerifyAccess(ctx, token)
}

// abandonSession revokes a session whose login failed after creation, so no
// half-established session stays active. Best effort.
func (o *Orchestrator) abandonSession(ctx context.Context, sessionID string, cause error) {
	o.logger.Warn("abandoning session after incomplete login",
		zap.String("session_id", sessionID),
		zap.Error(cause))
	if err := o.sessions.Revoke(ctx, sessionID, sessiondomain.ReasonUserLogout); err != nil {
		o.logger.Error("abandon session failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, credservice.ErrAccountLocked):
		return "locked"
	case errors.Is(err, credservice.ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, credservice.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}
