package ports

import (
	"context"

	"github.com/fleetwise/fleet-api/internal/core/domain"
)

// AccountUpdate lists the fields an update may change. Nil pointers are left
// untouched.
type AccountUpdate struct {
	Name         *string
	Phone        *string
	PasswordHash *string
	// ClearRefreshHash drops the current session in the same write.
	ClearRefreshHash bool
}

// AccountRepository defines persistence operations for accounts.
// Lookups return domain.ErrAccountNotFound on absence; Create returns
// domain.ErrEmailTaken when the unique email constraint fires.
type AccountRepository interface {
	// NextID returns a fresh identifier that Create will accept.
	NextID() string
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// Create stores account under account.ID, or under a new id when empty.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	Update(ctx context.Context, id string, update AccountUpdate) (*domain.Account, error)
}

// SessionStore persists the hash of the current refresh token on the
// account record. A new Set overwrites the previous session.
type SessionStore interface {
	SetRefreshHash(ctx context.Context, accountID, hash string) error
	// GetRefreshHash reports found=false when no session is active.
	GetRefreshHash(ctx context.Context, accountID string) (hash string, found bool, err error)
	// ClearRefreshHash is idempotent; clearing an absent session is not an error.
	ClearRefreshHash(ctx context.Context, accountID string) error
	// SwapRefreshHash replaces expected with next atomically. It returns
	// domain.ErrRefreshTokenReused when the stored hash differs from expected.
	SwapRefreshHash(ctx context.Context, accountID, expected, next string) error
}
