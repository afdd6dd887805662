package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "fleet-api"
)

// ErrInvalidToken covers every verification failure: bad signature, wrong
// algorithm, expiry, malformed structure and wrong token kind.
var ErrInvalidToken = fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthorized)

// TokenConfig configures a TokenIssuer. Access and refresh secrets must differ.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenIssuer signs HS256 access and refresh tokens.
type TokenIssuer struct {
	cfg   TokenConfig
	clock ports.Clock
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Kind  string `json:"typ"`
	jwt.RegisteredClaims
}

// NewTokenIssuer validates cfg and applies defaults. A nil clock selects
// SystemClock.
func NewTokenIssuer(cfg TokenConfig, clock ports.Clock) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token issuer: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token issuer: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenIssuer{cfg: cfg, clock: clock}, nil
}

// IssueAccess signs a short-lived access token.
func (i *TokenIssuer) IssueAccess(claims domain.SessionClaims) (string, time.Time, error) {
	return i.issue(claims, domain.TokenAccess)
}

// IssueRefresh signs a long-lived refresh token.
func (i *TokenIssuer) IssueRefresh(claims domain.SessionClaims) (string, time.Time, error) {
	return i.issue(claims, domain.TokenRefresh)
}

// IssuePair signs a fresh access/refresh pair for the same subject.
func (i *TokenIssuer) IssuePair(claims domain.SessionClaims) (*domain.TokenPair, error) {
	access, accessExp, err := i.IssueAccess(claims)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.IssueRefresh(claims)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify parses token with the secret for kind and returns its claims.
func (i *TokenIssuer) Verify(token string, kind domain.TokenKind) (*domain.SessionClaims, error) {
	secret, _, err := i.policy(kind)
	if err != nil {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithTimeFunc(i.clock.Now),
	)

	var c tokenClaims
	parsed, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if c.Kind != string(kind) || c.Subject == "" {
		return nil, ErrInvalidToken
	}

	out := &domain.SessionClaims{
		Subject: c.Subject,
		Email:   c.Email,
		Role:    domain.Role(c.Role),
		Kind:    kind,
		TokenID: c.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

func (i *TokenIssuer) issue(claims domain.SessionClaims, kind domain.TokenKind) (string, time.Time, error) {
	secret, ttl, err := i.policy(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	now := i.clock.Now()
	exp := now.Add(ttl)
	c := tokenClaims{
		Email: claims.Email,
		Role:  string(claims.Role),
		Kind:  string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    i.cfg.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

func (i *TokenIssuer) policy(kind domain.TokenKind) (string, time.Duration, error) {
	switch kind {
	case domain.TokenAccess:
		return i.cfg.AccessSecret, i.cfg.AccessTTL, nil
	case domain.TokenRefresh:
		return i.cfg.RefreshSecret, i.cfg.RefreshTTL, nil
	}
	return "", 0, fmt.Errorf("unknown token kind %q", kind)
}
