package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad
	// signature, or was issued by someone else.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenStale is returned when a token's version stamp predates the
	// minimum accepted breach version for its subject.
	ErrTokenStale = errors.New("token version is stale")
)

// VersionSource supplies breach version stamps. CurrentFor is the raw current
// version used when stamping new tokens; MinAcceptedFor is the lowest stamp a
// verifier accepts, which may trail CurrentFor during a grace window.
type VersionSource interface {
	CurrentFor(ctx context.Context, userID string) (int, error)
	MinAcceptedFor(ctx context.Context, userID string) (int, error)
}

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string   `json:"sid"`
	Roles     []string `json:"roles,omitempty"`
	Version   int      `json:"ver"`
}

// TokenIssuer issues and verifies HS256 access tokens. Tokens are stateless:
// verification needs only the shared key and a VersionSource, never storage.
type TokenIssuer struct {
	key       []byte
	issuer    string
	accessTTL time.Duration
	versions  VersionSource
}

// NewTokenIssuer returns a TokenIssuer signing with the given HS256 key.
// The key must be at least 32 bytes; issuer is set on claims and required
// during verification.
func NewTokenIssuer(key []byte, issuer string, accessTTL time.Duration, versions VersionSource) (*TokenIssuer, error) {
	if len(key) < 32 {
		return nil, errors.New("signing key must be at least 32 bytes for HS256")
	}
	if versions == nil {
		return nil, errors.New("version source is required")
	}
	return &TokenIssuer{
		key:       key,
		issuer:    issuer,
		accessTTL: accessTTL,
		versions:  versions,
	}, nil
}

// IssueAccess issues a short-lived access JWT for the given user and session.
// The token is stamped with the subject's current breach version so later
// bumps invalidate it without any revocation list.
func (p *TokenIssuer) IssueAccess(ctx context.Context, userID, sessionID string, roles []string) (string, AccessClaims, error) {
	ver, err := p.versions.CurrentFor(ctx, userID)
	if err != nil {
		return "", AccessClaims{}, fmt.Errorf("version stamp: %w", err)
	}
	now := time.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.accessTTL)),
		},
		SessionID: sessionID,
		Roles:     roles,
		Version:   ver,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", AccessClaims{}, err
	}
	return token, claims, nil
}

// VerifyAccess parses and validates an access token: signature and issuer
// first, then expiry, then the version stamp against MinAcceptedFor. Returns
// ErrInvalidToken, ErrTokenExpired, or ErrTokenStale respectively. A token
// without an expiry claim is invalid.
func (p *TokenIssuer) VerifyAccess(ctx context.Context, tokenString string) (AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return p.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, ErrTokenExpired
		}
		return AccessClaims{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return AccessClaims{}, ErrInvalidToken
	}
	min, err := p.versions.MinAcceptedFor(ctx, claims.Subject)
	if err != nil {
		return AccessClaims{}, fmt.Errorf("min accepted version: %w", err)
	}
	if claims.Version < min {
		return AccessClaims{}, ErrTokenStale
	}
	return *claims, nil
}
