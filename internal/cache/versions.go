// Package cache puts a fail-open redis layer in front of the breach version
// store. Reads that hit return without touching postgres; any miss, decode
// problem or redis error falls back to the durable source, which stays the
// only authority. Invalidation after a bump deletes exactly the bumped
// scope's key, and the entry TTL bounds staleness when a delete is lost.
package cache

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auth-session-engine/internal/breach/domain"
)

const (
	globalVersionKey  = "breach:v:global"
	userVersionPrefix = "breach:v:user:"
)

// VersionSource is the durable read path behind the cache; the breach
// repository satisfies it.
type VersionSource interface {
	GetScopes(ctx context.Context, userID string) ([]domain.ScopeVersion, error)
}

// versionEntry is the stored shape. Present false records that the scope has
// no row yet, which is worth caching too: most users are never bumped.
type versionEntry struct {
	Present     bool       `json:"present"`
	Version     int        `json:"version,omitempty"`
	PrevVersion int        `json:"prev_version,omitempty"`
	BumpedAt    *time.Time `json:"bumped_at,omitempty"`
}

// Versions caches breach scope rows per scope key. A nil client passes every
// read straight through to the source.
type Versions struct {
	client *goredis.Client
	source VersionSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewVersions returns the cache wrapper. ttl caps how long an entry may
// serve reads; it should stay well under the bump grace period.
func NewVersions(client *goredis.Client, source VersionSource, ttl time.Duration, logger *zap.Logger) *Versions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Versions{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// GetScopes returns the global scope row plus the user's row when one
// exists, serving from redis when both keys are present and falling back to
// the source otherwise. The fallback result is written back best-effort.
func (c *Versions) GetScopes(ctx context.Context, userID string) ([]domain.ScopeVersion, error) {
	if c.client == nil {
		return c.source.GetScopes(ctx, userID)
	}

	vals, err := c.client.MGet(ctx, globalVersionKey, userVersionKey(userID)).Result()
	if err != nil {
		c.logger.Debug("version cache read failed", zap.Error(err))
	} else if scopes, ok := decodeScopes(vals, userID); ok {
		return scopes, nil
	}

	scopes, err := c.source.GetScopes(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.write(ctx, userID, scopes)
	return scopes, nil
}

// Invalidate deletes the bumped scope's key. An empty userID means the
// global scope. Failures are logged and swallowed; the TTL bounds how long
// the stale entry can live.
func (c *Versions) Invalidate(ctx context.Context, userID string) {
	if c.client == nil {
		return
	}
	key := globalVersionKey
	if userID != "" {
		key = userVersionKey(userID)
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("version cache invalidation failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (c *Versions) write(ctx context.Context, userID string, scopes []domain.ScopeVersion) {
	entries := map[string]versionEntry{
		globalVersionKey:       {},
		userVersionKey(userID): {},
	}
	for _, sv := range scopes {
		key := globalVersionKey
		if sv.Scope != domain.GlobalScope {
			key = userVersionKey(sv.Scope)
		}
		entries[key] = versionEntry{
			Present:     true,
			Version:     sv.Version,
			PrevVersion: sv.PrevVersion,
			BumpedAt:    sv.BumpedAt,
		}
	}

	pipe := c.client.TxPipeline()
	for key, entry := range entries {
		raw, err := json.Marshal(entry)
		if err != nil {
			c.logger.Debug("version cache encode failed", zap.Error(err))
			return
		}
		pipe.Set(ctx, key, raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debug("version cache write failed", zap.Error(err))
	}
}

// decodeScopes turns an MGET result into scope rows. Both keys must decode
// for a hit; the global entry must also be present, since the global row
// always exists in the durable store.
func decodeScopes(vals []any, userID string) ([]domain.ScopeVersion, bool) {
	if len(vals) != 2 {
		return nil, false
	}
	global, ok := decodeEntry(vals[0])
	if !ok || !global.Present {
		return nil, false
	}
	user, ok := decodeEntry(vals[1])
	if !ok {
		return nil, false
	}

	scopes := []domain.ScopeVersion{{
		Scope:       domain.GlobalScope,
		Version:     global.Version,
		PrevVersion: global.PrevVersion,
		BumpedAt:    global.BumpedAt,
	}}
	if user.Present {
		scopes = append(scopes, domain.ScopeVersion{
			Scope:       userID,
			Version:     user.Version,
			PrevVersion: user.PrevVersion,
			BumpedAt:    user.BumpedAt,
		})
	}
	return scopes, true
}

func decodeEntry(val any) (versionEntry, bool) {
	raw, ok := val.(string)
	if !ok {
		return versionEntry{}, false
	}
	var entry versionEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return versionEntry{}, false
	}
	return entry, true
}

func userVersionKey(userID string) string {
	return userVersionPrefix + userID
}
