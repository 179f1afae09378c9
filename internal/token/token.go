// Package token issues and validates the opaque bearer secrets that let an
// anonymous visitor manage their own booking. Secrets are persisted only as
// one-way digests, so a leaked database never discloses a usable token.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
)

const secretBytes = 32 // 256 bits of entropy

// Generate returns a fresh URL-safe opaque secret.
func Generate() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash returns the deterministic storage key for a raw secret.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Check validates a stored token against the expected kind and the current
// instant. "Already used" is reported distinctly so callers can decide on
// idempotent handling. Consuming the token is the caller's job and must
// happen in the same transaction as the effect it authorizes.
func Check(tok domain.BookingToken, kind domain.TokenKind, now time.Time) error {
	if tok.Kind != kind {
		return domain.ErrTokenInvalid
	}
	if tok.Expired(now) {
		return domain.ErrTokenExpired
	}
	if tok.Used() {
		return domain.ErrTokenUsed
	}
	return nil
}
