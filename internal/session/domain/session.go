package domain

import "time"

// Revocation reasons stored on sessions and refresh tokens.
const (
	ReasonUserLogout           = "user_logout"
	ReasonSessionLimitExceeded = "session_limit_exceeded"
	ReasonTokenReuseDetected   = "token_reuse_detected"
	ReasonAdminRevoked         = "admin_revoked"
)

// Session represents one authenticated device session. A session with
// RevokedAt set is terminal; it is soft-revoked and kept for the retention
// window, never resurrected.
type Session struct {
	ID            string
	UserID        string
	Device        string
	IPAddress     string
	CreatedAt     time.Time
	LastSeenAt    time.Time
	RevokedAt     *time.Time // nil while active
	RevokedReason string     // empty while active
}

// Active reports whether the session has not been revoked.
func (s *Session) Active() bool {
	return s.RevokedAt == nil
}
