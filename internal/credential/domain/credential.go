package domain

import "time"

// Credential is the stored login material and lockout state for one user.
// Mutated only by the credential verifier and the seed tool.
type Credential struct {
	ID             string
	Email          string // stored lowercase
	PasswordHash   string
	EmailVerified  bool
	Roles          []string
	FailedAttempts int
	LockedUntil    *time.Time // nil when not locked
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
