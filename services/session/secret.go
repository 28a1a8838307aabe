package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

var ErrSecretGenerationFailed = errors.New("failed to generate secure refresh secret")

// NewRefreshSecret returns an opaque random secret of length random bytes,
// URL-safe base64 encoded. The raw secret is handed to the client once and
// never persisted.
func NewRefreshSecret(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", ErrSecretGenerationFailed
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashRefreshSecret derives the stored hash from a presented secret using
// HMAC-SHA256 keyed with the server-side pepper, so a leaked sessions
// table alone cannot be replayed.
func HashRefreshSecret(secret, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}
