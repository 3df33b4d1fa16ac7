package domain

import "time"

// Actions recorded by the engine.
const (
	ActionLoginAttempted      = "login.attempted"
	ActionLoginSucceeded      = "login.succeeded"
	ActionLoginFailed         = "login.failed"
	ActionSessionCreated      = "session.created"
	ActionSessionRevoked      = "session.revoked"
	ActionSessionEvicted      = "session.evicted"
	ActionTokenRefreshed      = "token.refreshed"
	ActionTokenReuseDetected  = "token.reuse_detected"
	ActionBreachVersionBumped = "breach.version_bumped"
)

// Outcomes for terminal events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Reasons recorded on login.failed events.
const (
	ReasonBadPassword      = "bad_password"
	ReasonAccountLocked    = "account_locked"
	ReasonEmailNotVerified = "email_not_verified"
)

// Event is a single audit record. ID and OccurredAt are filled by the
// dispatcher when left zero.
type Event struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Action     string            `json:"action"`
	UserID     string            `json:"user_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
