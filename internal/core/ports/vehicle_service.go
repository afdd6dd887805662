package ports

import (
	"context"

	"github.com/fleetwise/fleet-api/internal/core/domain"
)

// CreateVehicleInput carries all data needed to register a vehicle.
type CreateVehicleInput struct {
	PlateNumber  string
	Model        string
	Manufacturer string
	Year         int
	Type         string
	SimNumber    string
	DeviceID     string
	DriverID     string // optional
}

// UpdateVehicleInput carries the changed fields of a vehicle. Driver
// assignment goes through AssignDriver/UnassignDriver instead.
type UpdateVehicleInput struct {
	PlateNumber  *string
	Model        *string
	Manufacturer *string
	Year         *int
	Type         *string
	SimNumber    *string
	DeviceID     *string
}

// ListVehiclesResult is returned by ListVehicles.
type ListVehiclesResult struct {
	Items           []*domain.Vehicle `json:"items"`
	Total           int64             `json:"total"`
	Page            int               `json:"page"`
	Limit           int               `json:"limit"`
	TotalPages      int               `json:"total_pages"`
	HasNextPage     bool              `json:"has_next_page"`
	HasPreviousPage bool              `json:"has_previous_page"`
}

// VehicleService defines use-case operations for vehicles.
type VehicleService interface {
	CreateVehicle(ctx context.Context, input CreateVehicleInput) (*domain.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	GetVehicleByDriver(ctx context.Context, driverID string) (*domain.Vehicle, error)
	ListVehicles(ctx context.Context, filter VehicleFilter) (*ListVehiclesResult, error)
	UpdateVehicle(ctx context.Context, id string, input UpdateVehicleInput) (*domain.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error
	AssignDriver(ctx context.Context, vehicleID, driverID string) (*domain.Vehicle, error)
	UnassignDriver(ctx context.Context, vehicleID string) (*domain.Vehicle, error)
}
