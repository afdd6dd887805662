package domain

import (
	"strings"
	"time"
)

// Role is the closed set of roles an account can hold.
type Role string

const (
	RoleUser         Role = "USER"
	RoleFleetManager Role = "FLEET_MANAGER"
	RoleAdmin        Role = "ADMIN"
	RoleDriver       Role = "DRIVER"
)

// DefaultRole is assigned when registration does not name one.
const DefaultRole = RoleUser

// Roles lists every valid role.
var Roles = []Role{RoleUser, RoleFleetManager, RoleAdmin, RoleDriver}

// ParseRole converts s into a Role. An empty string yields DefaultRole.
func ParseRole(s string) (Role, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultRole, nil
	}
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleFleetManager, RoleAdmin, RoleDriver:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Account is the identity record owned by the store.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Role         Role
	// RefreshTokenHash is nil when no session is active.
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Profile is the public view of an Account. It never carries secrets.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile returns the public view of a.
func (a *Account) Profile() *Profile {
	return &Profile{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Phone:     a.Phone,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
