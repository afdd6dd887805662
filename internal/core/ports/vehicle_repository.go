package ports

import (
	"context"

	"github.com/fleetwise/fleet-api/internal/core/domain"
)

// Sort fields accepted by ListVehicles.
const (
	SortByCreatedAt    = "createdAt"
	SortByYear         = "year"
	SortByPlateNumber  = "plateNumber"
	SortByManufacturer = "manufacturer"
)

// VehicleFilter carries all query parameters for listing vehicles.
type VehicleFilter struct {
	Type         string // optional: case-insensitive substring match
	Manufacturer string // optional: case-insensitive substring match
	Assigned     *bool  // optional: nil = any, true = has driver, false = no driver
	SortBy       string // one of the SortBy* constants
	Descending   bool
	Page         int // 1-based
	Limit        int // max rows per page (capped at 100 by service)
}

// VehicleUpdate lists the fields an update may change. Nil pointers are left
// untouched. DriverID uses a double pointer so that "unassign" (pointer to
// nil) can be told apart from "leave as is" (nil).
type VehicleUpdate struct {
	PlateNumber  *string
	Model        *string
	Manufacturer *string
	Year         *int
	Type         *string
	SimNumber    *string
	DeviceID     *string
	DriverID     **string
}

// VehicleRepository defines persistence operations for vehicles.
// Lookups return domain.ErrVehicleNotFound on absence. Writes return
// domain.ErrPlateTaken or domain.ErrDriverAlreadyAssigned when the
// corresponding unique index fires.
type VehicleRepository interface {
	Create(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error)
	FindByID(ctx context.Context, id string) (*domain.Vehicle, error)
	FindByPlate(ctx context.Context, plate string) (*domain.Vehicle, error)
	FindByDriver(ctx context.Context, driverID string) (*domain.Vehicle, error)
	// List returns a page of vehicles matching filter and the total count.
	List(ctx context.Context, filter VehicleFilter) ([]*domain.Vehicle, int64, error)
	Update(ctx context.Context, id string, update VehicleUpdate) (*domain.Vehicle, error)
	Delete(ctx context.Context, id string) error
}
