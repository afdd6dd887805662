package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRefreshToken returns the hex SHA-256 digest stored for a refresh
// token. Refresh tokens are signed JWTs with a random id, so a fast digest
// is enough; bcrypt would also truncate them at 72 bytes.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenMatches compares token against a stored digest in constant time.
func RefreshTokenMatches(token, digest string) bool {
	if token == "" || digest == "" {
		return false
	}
	computed := HashRefreshToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
