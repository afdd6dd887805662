package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the core wraps exactly one of
// these so transports can map them without knowing the specific cause.
var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("access forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrInternal     = errors.New("internal error")
)

// Account and session errors.
var (
	ErrEmailTaken          = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	ErrAccountNotFound     = fmt.Errorf("%w: account not found", ErrNotFound)
	ErrInvalidRole         = fmt.Errorf("%w: unknown role", ErrValidation)

	// ErrRefreshTokenReused is reported by the session store when a
	// conditional swap finds a different hash than the one expected.
	ErrRefreshTokenReused = fmt.Errorf("%w: refresh token already rotated", ErrUnauthorized)
)

// Vehicle errors.
var (
	ErrVehicleNotFound       = fmt.Errorf("%w: vehicle not found", ErrNotFound)
	ErrDriverNotFound        = fmt.Errorf("%w: driver not found", ErrNotFound)
	ErrPlateTaken            = fmt.Errorf("%w: vehicle with this plate number already exists", ErrConflict)
	ErrDriverAlreadyAssigned = fmt.Errorf("%w: driver already assigned to another vehicle", ErrConflict)
	ErrNotADriver            = fmt.Errorf("%w: account does not hold the DRIVER role", ErrValidation)
)

// Internal wraps an infrastructure failure so that it matches both
// ErrInternal and the original cause under errors.Is.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
