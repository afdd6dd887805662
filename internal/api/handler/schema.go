package handler

import "github.com/fleetwise/fleet-api/internal/core/domain"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Auth ---

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name"     validate:"required,max=100"`
	Phone    string `json:"phone"    validate:"omitempty,max=32"`
	Role     string `json:"role"     validate:"omitempty,max=32"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

type authResponse struct {
	User   *domain.Profile   `json:"user"`
	Tokens *domain.TokenPair `json:"tokens"`
}

// --- Users ---

type updateProfileRequest struct {
	Name  *string `json:"name"  validate:"omitempty,min=1,max=100"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}

// --- Vehicles ---

type createVehicleRequest struct {
	PlateNumber  string `json:"plate_number" validate:"required,max=20"`
	Model        string `json:"model"        validate:"required,max=100"`
	Manufacturer string `json:"manufacturer" validate:"required,max=100"`
	Year         int    `json:"year"         validate:"required,gte=1900"`
	Type         string `json:"type"         validate:"required,max=50"`
	SimNumber    string `json:"sim_number"   validate:"omitempty,max=32"`
	DeviceID     string `json:"device_id"    validate:"omitempty,max=64"`
	DriverID     string `json:"driver_id"    validate:"omitempty"`
}

type updateVehicleRequest struct {
	PlateNumber  *string `json:"plate_number" validate:"omitempty,min=1,max=20"`
	Model        *string `json:"model"        validate:"omitempty,min=1,max=100"`
	Manufacturer *string `json:"manufacturer" validate:"omitempty,min=1,max=100"`
	Year         *int    `json:"year"         validate:"omitempty,gte=1900"`
	Type         *string `json:"type"         validate:"omitempty,min=1,max=50"`
	SimNumber    *string `json:"sim_number"   validate:"omitempty,max=32"`
	DeviceID     *string `json:"device_id"    validate:"omitempty,max=64"`
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}
