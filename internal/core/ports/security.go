package ports

import (
	"time"

	"github.com/fleetwise/fleet-api/internal/core/domain"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify never fails on malformed digests; it reports false instead.
	Verify(plaintext, digest string) bool
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	IssuePair(claims domain.SessionClaims) (*domain.TokenPair, error)
	Verify(token string, kind domain.TokenKind) (*domain.SessionClaims, error)
}

// Clock is the wall-clock source used for expiry computation.
type Clock interface {
	Now() time.Time
}
