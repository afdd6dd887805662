package ports

import (
	"context"

	"github.com/fleetwise/fleet-api/internal/core/domain"
)

// RegisterInput carries the data needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	// Role is optional; empty means domain.DefaultRole.
	Role string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Profile *domain.Profile
	Tokens  *domain.TokenPair
}

// AuthService is the session lifecycle exposed to transports.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, accountID, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, accountID string) error
	ChangePassword(ctx context.Context, accountID, current, next string) error
}

// SessionAuditor accepts session events for asynchronous recording.
// Enqueue must not block the caller.
type SessionAuditor interface {
	Enqueue(event domain.SessionEvent)
}

// SessionEventRecorder persists session events.
type SessionEventRecorder interface {
	InsertSessionEvent(ctx context.Context, event domain.SessionEvent) error
}
