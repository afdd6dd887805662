package domain

import "time"

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// SessionClaims is the payload signed into every token. It is derived fresh
// on each issuance and never persisted.
type SessionClaims struct {
	Subject   string
	Email     string
	Role      Role
	Kind      TokenKind
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ClaimsFor builds the claims for a token about to be issued for a.
func ClaimsFor(a *Account) SessionClaims {
	return SessionClaims{
		Subject: a.ID,
		Email:   a.Email,
		Role:    a.Role,
	}
}

// TokenPair is returned to the caller on register, login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SessionEventKind names an entry in the session audit trail.
type SessionEventKind string

const (
	EventRegistered      SessionEventKind = "registered"
	EventLogin           SessionEventKind = "login"
	EventLoginFailed     SessionEventKind = "login_failed"
	EventRefreshed       SessionEventKind = "refreshed"
	EventRefreshRejected SessionEventKind = "refresh_rejected"
	EventLogout          SessionEventKind = "logout"
	EventPasswordChanged SessionEventKind = "password_changed"
)

// SessionEvent is a single audit record. AccountID may be empty for failed
// logins against unknown emails.
type SessionEvent struct {
	AccountID string
	Kind      SessionEventKind
	At        time.Time
}
