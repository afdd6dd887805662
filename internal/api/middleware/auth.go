package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

// Context keys set by Auth and RefreshAuth.
const (
	KeyAccountID    = "account_id"
	KeyEmail        = "email"
	KeyRole         = "role"
	KeyRefreshToken = "refresh_token"
)

// Auth validates a bearer access token and injects its claims into context.
func Auth(tokens ports.TokenIssuer) echo.MiddlewareFunc {
	return bearer(tokens, domain.TokenAccess)
}

// RefreshAuth validates a bearer refresh token and additionally stores the
// raw token for the refresh handler.
func RefreshAuth(tokens ports.TokenIssuer) echo.MiddlewareFunc {
	return bearer(tokens, domain.TokenRefresh)
}

func bearer(tokens ports.TokenIssuer, kind domain.TokenKind) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := tokens.Verify(parts[1], kind)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(KeyAccountID, claims.Subject)
			c.Set(KeyEmail, claims.Email)
			c.Set(KeyRole, claims.Role)
			if kind == domain.TokenRefresh {
				c.Set(KeyRefreshToken, parts[1])
			}

			return next(c)
		}
	}
}

// AccountID returns the authenticated account id, or "" outside Auth.
func AccountID(c echo.Context) string {
	id, _ := c.Get(KeyAccountID).(string)
	return id
}

// Role returns the authenticated role, or "" outside Auth.
func Role(c echo.Context) domain.Role {
	r, _ := c.Get(KeyRole).(domain.Role)
	return r
}

// RefreshToken returns the raw refresh token stored by RefreshAuth.
func RefreshToken(c echo.Context) string {
	t, _ := c.Get(KeyRefreshToken).(string)
	return t
}
