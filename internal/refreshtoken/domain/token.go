package domain

import "time"

// Stored refresh token states. Terminal states are never left: a rotated or
// revoked row stays that way until the janitor purges it. Expiry is derived
// from ExpiresAt, so a live row can still be expired.
const (
	StatusLive    = "live"
	StatusRotated = "rotated"
	StatusRevoked = "revoked"
)

// RefreshToken is one link in a session's rotation chain. Only the one-way
// hash of the opaque secret is stored; the plaintext leaves the process once,
// at issuance. ReplacedBy points at the successor so a chain can be walked
// when investigating a reuse incident.
type RefreshToken struct {
	ID            string
	UserID        string
	SessionID     string
	TokenHash     string
	Status        string
	TokenVersion  int
	RotationCount int
	ReplacedBy    string // successor id, set when rotated
	CreatedAt     time.Time
	ExpiresAt     time.Time
	RotatedAt     *time.Time
	RevokedAt     *time.Time
	RevokedReason string
}

// Expired reports whether the token's lifetime has passed at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
