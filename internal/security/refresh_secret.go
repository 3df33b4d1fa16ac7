package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const refreshSecretBytes = 32

// NewRefreshSecret returns a fresh opaque refresh secret and the SHA-256 hex
// digest stored in its place. The plaintext secret is handed to the client
// once and never persisted.
func NewRefreshSecret() (secret, hash string, err error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(b)
	return secret, HashRefreshSecret(secret), nil
}

// HashRefreshSecret returns the SHA-256 hash of the refresh secret, hex-encoded.
// Storage and lookups use the digest so a database leak yields no usable secrets.
func HashRefreshSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}
