package domain

import "time"

// GlobalScope is the breach_versions row that covers every user.
const GlobalScope = "global"

// ScopeVersion is one breach_versions row: a monotonically increasing token
// version for a scope (GlobalScope or a user id), the version it replaced,
// and when the bump happened.
type ScopeVersion struct {
	Scope       string
	Version     int
	PrevVersion int
	BumpedAt    *time.Time // nil for the seeded global row
}
