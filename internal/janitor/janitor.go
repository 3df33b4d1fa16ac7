// Package janitor deletes rows past the retention window: revoked sessions
// and terminal refresh tokens. Live state is never touched.
package janitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SessionPurger deletes revoked sessions older than the cutoff.
type SessionPurger interface {
	PurgeRevoked(ctx context.Context, before time.Time) (int64, error)
}

// TokenPurger deletes terminal refresh tokens older than the cutoff.
type TokenPurger interface {
	PurgeTerminal(ctx context.Context, before time.Time) (int64, error)
}

// Janitor sweeps dead session and token rows out of the database on a fixed
// interval. Rows younger than the retention window always survive a sweep.
type Janitor struct {
	sessions  SessionPurger
	tokens    TokenPurger
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// New returns a Janitor. retention is how long revoked and terminal rows are
// kept; interval is the sweep cadence.
func New(sessions SessionPurger, tokens TokenPurger, retention, interval time.Duration, logger *zap.Logger) *Janitor {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		sessions:  sessions,
		tokens:    tokens,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps once immediately, then on every interval tick until the context
// is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	if err := j.Sweep(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				return err
			}
		}
	}
}

// Sweep performs a single purge pass. Token rows go first so rows freed by
// the session cascade do not inflate the token count.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)

	tokens, err := j.tokens.PurgeTerminal(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge terminal refresh tokens: %w", err)
	}
	sessions, err := j.sessions.PurgeRevoked(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge revoked sessions: %w", err)
	}

	if tokens > 0 || sessions > 0 {
		j.logger.Info("retention sweep completed",
			zap.Int64("tokens_purged", tokens),
			zap.Int64("sessions_purged", sessions),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
