package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"auth-session-engine/internal/audit"
	auditdomain "auth-session-engine/internal/audit/domain"
	"auth-session-engine/internal/credential/domain"
	"auth-session-engine/internal/db"
	"auth-session-engine/internal/security"
)

// Sentinel errors for credential verification; callers map them to transport codes.
// ErrInvalidCredentials deliberately covers both unknown users and bad
// passwords so callers cannot probe which accounts exist.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrEmailNotVerified   = errors.New("email address is not verified")
)

// VerifiedIdentity is the successful outcome of a password check.
type VerifiedIdentity struct {
	UserID string
	Email  string
	Roles  []string
}

// CredentialRepo is the minimal credential repository needed by the verifier.
type CredentialRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	RecordFailure(ctx context.Context, userID string, threshold int, lockFor time.Duration) (int, *time.Time, error)
	ResetFailures(ctx context.Context, userID string) error
}

// Verifier checks passwords against stored hashes and tracks the lockout
// state machine. Callers resolve email to user id before calling Verify.
type Verifier struct {
	repo      CredentialRepo
	hasher    *security.Hasher
	dummyHash string
	recorder  audit.Recorder
	threshold int
	lockFor   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewVerifier returns a Verifier. threshold is the consecutive-failure count
// that engages the lock; lockFor is how long the lock holds.
func NewVerifier(repo CredentialRepo, hasher *security.Hasher, recorder audit.Recorder, threshold int, lockFor time.Duration, logger *zap.Logger) *Verifier {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Compared against when the user does not exist, so an unknown id costs
	// the same bcrypt work as a wrong password.
	dummyHash, err := hasher.Hash([]byte("unknown-user-placeholder"))
	if err != nil {
		dummyHash = ""
	}
	return &Verifier{
		repo:      repo,
		hasher:    hasher,
		dummyHash: dummyHash,
		recorder:  recorder,
		threshold: threshold,
		lockFor:   lockFor,
		logger:    logger,
		now:       time.Now,
	}
}

// Verify checks the password for the given user id. Order is fixed: email
// verification first (an unverified attempt never counts against lockout),
// then the lock (no password comparison while locked), then the hash. A
// mismatch runs the atomic failure update; the attempt that reaches the
// threshold reports ErrAccountLocked, not ErrInvalidCredentials.
func (s *Verifier) Verify(ctx context.Context, userID, password string) (*VerifiedIdentity, error) {
	cred, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		_ = s.hasher.Compare(s.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	s.recorder.Record(ctx, auditdomain.Event{Action: auditdomain.ActionLoginAttempted, UserID: cred.ID})

	if !cred.EmailVerified {
		s.recordFailure(ctx, cred.ID, auditdomain.ReasonEmailNotVerified)
		return nil, ErrEmailNotVerified
	}
	if cred.LockedUntil != nil && cred.LockedUntil.After(s.now()) {
		s.recordFailure(ctx, cred.ID, auditdomain.ReasonAccountLocked)
		return nil, ErrAccountLocked
	}

	if err := s.hasher.Compare(cred.PasswordHash, []byte(password)); err != nil {
		attempts, lockedUntil, ferr := s.repo.RecordFailure(ctx, cred.ID, s.threshold, s.lockFor)
		if ferr != nil {
			if errors.Is(ferr, db.ErrNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, ferr
		}
		if lockedUntil != nil {
			s.logger.Warn("account locked after repeated failures",
				zap.String("user_id", cred.ID),
				zap.Int("failed_attempts", attempts),
				zap.Time("locked_until", *lockedUntil))
			s.recordFailure(ctx, cred.ID, auditdomain.ReasonAccountLocked)
			return nil, ErrAccountLocked
		}
		s.recordFailure(ctx, cred.ID, auditdomain.ReasonBadPassword)
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.ResetFailures(ctx, cred.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	s.recorder.Record(ctx, auditdomain.Event{
		Action:  auditdomain.ActionLoginSucceeded,
		UserID:  cred.ID,
		Outcome: auditdomain.OutcomeSuccess,
	})
	return &VerifiedIdentity{UserID: cred.ID, Email: cred.Email, Roles: cred.Roles}, nil
}

func (s *Verifier) recordFailure(ctx context.Context, userID, reason string) {
	s.recorder.Record(ctx, auditdomain.Event{
		Action:  auditdomain.ActionLoginFailed,
		UserID:  userID,
		Outcome: auditdomain.OutcomeFailure,
		Reason:  reason,
	})
}
