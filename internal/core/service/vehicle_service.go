package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fleetwise/fleet-api/internal/core/cache"
	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
	"github.com/fleetwise/fleet-api/internal/core/security"
	"github.com/fleetwise/fleet-api/internal/pkg/metrics"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	minVehicleYear   = 1900
)

// VehicleService manages vehicles and driver assignment. Reads go through
// the cache; every write invalidates the vehicle, its drivers and all list
// pages.
type VehicleService struct {
	vehicles ports.VehicleRepository
	accounts ports.AccountRepository
	cache    *cache.Layer
	clock    ports.Clock
	log      zerolog.Logger
}

func NewVehicleService(vehicles ports.VehicleRepository, accounts ports.AccountRepository, c *cache.Layer, log zerolog.Logger) *VehicleService {
	return &VehicleService{
		vehicles: vehicles,
		accounts: accounts,
		cache:    c,
		clock:    security.SystemClock{},
		log:      log,
	}
}

func (s *VehicleService) CreateVehicle(ctx context.Context, in ports.CreateVehicleInput) (*domain.Vehicle, error) {
	plate := normalizePlate(in.PlateNumber)
	if plate == "" || strings.TrimSpace(in.Model) == "" || strings.TrimSpace(in.Manufacturer) == "" || strings.TrimSpace(in.Type) == "" {
		return nil, fmt.Errorf("%w: plate number, model, manufacturer and type are required", domain.ErrValidation)
	}
	if err := s.checkYear(in.Year); err != nil {
		return nil, err
	}

	if _, err := s.vehicles.FindByPlate(ctx, plate); err == nil {
		return nil, domain.ErrPlateTaken
	} else if !errors.Is(err, domain.ErrVehicleNotFound) {
		return nil, domain.Internal("create vehicle: find plate", err)
	}

	var driverID *string
	if in.DriverID != "" {
		if _, err := s.checkDriver(ctx, in.DriverID, ""); err != nil {
			return nil, err
		}
		d := in.DriverID
		driverID = &d
	}

	now := s.clock.Now()
	created, err := s.vehicles.Create(ctx, &domain.Vehicle{
		PlateNumber:  plate,
		Model:        strings.TrimSpace(in.Model),
		Manufacturer: strings.TrimSpace(in.Manufacturer),
		Year:         in.Year,
		Type:         strings.TrimSpace(in.Type),
		SimNumber:    strings.TrimSpace(in.SimNumber),
		DeviceID:     strings.TrimSpace(in.DeviceID),
		DriverID:     driverID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, vehicleErr("create vehicle", err)
	}

	if err := s.invalidate(ctx, created.ID, created.AssignedDriver()); err != nil {
		return nil, err
	}
	metrics.VehicleMutationsTotal.WithLabelValues("create").Inc()
	s.log.Info().Str("vehicle_id", created.ID).Str("plate", plate).Msg("vehicle created")
	return s.withDriver(ctx, created)
}

func (s *VehicleService) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	return cache.ReadThrough(ctx, s.cache, cache.VehicleKey(id), cache.VehicleTTL,
		func(ctx context.Context) (*domain.Vehicle, error) {
			v, err := s.vehicles.FindByID(ctx, id)
			if err != nil {
				return nil, vehicleErr("get vehicle", err)
			}
			return s.withDriver(ctx, v)
		})
}

func (s *VehicleService) GetVehicleByDriver(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	return cache.ReadThrough(ctx, s.cache, cache.VehicleByDriverKey(driverID), cache.VehicleTTL,
		func(ctx context.Context) (*domain.Vehicle, error) {
			v, err := s.vehicles.FindByDriver(ctx, driverID)
			if err != nil {
				return nil, vehicleErr("get vehicle by driver", err)
			}
			return s.withDriver(ctx, v)
		})
}

// ListVehicles returns one page of vehicles. Missing pagination and sort
// fields are defaulted; an unknown sort field is a validation error.
func (s *VehicleService) ListVehicles(ctx context.Context, filter ports.VehicleFilter) (*ports.ListVehiclesResult, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	return cache.ReadThrough(ctx, s.cache, cache.VehicleListKey(filterSignature(f)), cache.VehicleListTTL,
		func(ctx context.Context) (*ports.ListVehiclesResult, error) {
			items, total, err := s.vehicles.List(ctx, f)
			if err != nil {
				return nil, domain.Internal("list vehicles", err)
			}
			for i, v := range items {
				if items[i], err = s.withDriver(ctx, v); err != nil {
					return nil, err
				}
			}

			pages := int(math.Ceil(float64(total) / float64(f.Limit)))
			return &ports.ListVehiclesResult{
				Items:           items,
				Total:           total,
				Page:            f.Page,
				Limit:           f.Limit,
				TotalPages:      pages,
				HasNextPage:     f.Page < pages,
				HasPreviousPage: f.Page > 1,
			}, nil
		})
}

func (s *VehicleService) UpdateVehicle(ctx context.Context, id string, in ports.UpdateVehicleInput) (*domain.Vehicle, error) {
	current, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		return nil, vehicleErr("update vehicle", err)
	}

	update := ports.VehicleUpdate{
		Model:        trimmed(in.Model),
		Manufacturer: trimmed(in.Manufacturer),
		Year:         in.Year,
		Type:         trimmed(in.Type),
		SimNumber:    trimmed(in.SimNumber),
		DeviceID:     trimmed(in.DeviceID),
	}
	if in.Year != nil {
		if err := s.checkYear(*in.Year); err != nil {
			return nil, err
		}
	}
	if in.PlateNumber != nil {
		plate := normalizePlate(*in.PlateNumber)
		if plate == "" {
			return nil, fmt.Errorf("%w: plate number cannot be empty", domain.ErrValidation)
		}
		if plate != current.PlateNumber {
			if other, err := s.vehicles.FindByPlate(ctx, plate); err == nil && other.ID != id {
				return nil, domain.ErrPlateTaken
			} else if err != nil && !errors.Is(err, domain.ErrVehicleNotFound) {
				return nil, domain.Internal("update vehicle: find plate", err)
			}
		}
		update.PlateNumber = &plate
	}

	updated, err := s.vehicles.Update(ctx, id, update)
	if err != nil {
		return nil, vehicleErr("update vehicle", err)
	}
	if err := s.invalidate(ctx, id, current.AssignedDriver()); err != nil {
		return nil, err
	}
	metrics.VehicleMutationsTotal.WithLabelValues("update").Inc()
	return s.withDriver(ctx, updated)
}

func (s *VehicleService) DeleteVehicle(ctx context.Context, id string) error {
	current, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		return vehicleErr("delete vehicle", err)
	}
	if err := s.vehicles.Delete(ctx, id); err != nil {
		return vehicleErr("delete vehicle", err)
	}
	if err := s.invalidate(ctx, id, current.AssignedDriver()); err != nil {
		return err
	}
	metrics.VehicleMutationsTotal.WithLabelValues("delete").Inc()
	s.log.Info().Str("vehicle_id", id).Msg("vehicle deleted")
	return nil
}

// AssignDriver makes driverID the driver of vehicleID, replacing any
// previous driver. Assigning the current driver again is a no-op.
func (s *VehicleService) AssignDriver(ctx context.Context, vehicleID, driverID string) (*domain.Vehicle, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", domain.ErrValidation)
	}
	current, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, vehicleErr("assign driver", err)
	}
	if current.AssignedDriver() == driverID {
		return s.withDriver(ctx, current)
	}
	if _, err := s.checkDriver(ctx, driverID, vehicleID); err != nil {
		return nil, err
	}

	next := &driverID
	updated, err := s.vehicles.Update(ctx, vehicleID, ports.VehicleUpdate{DriverID: &next})
	if err != nil {
		return nil, vehicleErr("assign driver", err)
	}
	if err := s.invalidate(ctx, vehicleID, current.AssignedDriver(), driverID); err != nil {
		return nil, err
	}
	metrics.VehicleMutationsTotal.WithLabelValues("assign_driver").Inc()
	return s.withDriver(ctx, updated)
}

func (s *VehicleService) UnassignDriver(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	current, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, vehicleErr("unassign driver", err)
	}
	if current.DriverID == nil {
		return current, nil
	}

	var none *string
	updated, err := s.vehicles.Update(ctx, vehicleID, ports.VehicleUpdate{DriverID: &none})
	if err != nil {
		return nil, vehicleErr("unassign driver", err)
	}
	if err := s.invalidate(ctx, vehicleID, current.AssignedDriver()); err != nil {
		return nil, err
	}
	metrics.VehicleMutationsTotal.WithLabelValues("unassign_driver").Inc()
	return updated, nil
}

// checkDriver ensures driverID names a DRIVER account that drives no vehicle
// other than exceptVehicle.
func (s *VehicleService) checkDriver(ctx context.Context, driverID, exceptVehicle string) (*domain.Account, error) {
	acct, err := s.accounts.FindByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrDriverNotFound
		}
		return nil, domain.Internal("find driver", err)
	}
	if acct.Role != domain.RoleDriver {
		return nil, domain.ErrNotADriver
	}

	v, err := s.vehicles.FindByDriver(ctx, driverID)
	switch {
	case err == nil && v.ID != exceptVehicle:
		return nil, domain.ErrDriverAlreadyAssigned
	case err != nil && !errors.Is(err, domain.ErrVehicleNotFound):
		return nil, domain.Internal("find driver vehicle", err)
	}
	return acct, nil
}

// withDriver embeds the driver summary. A driver id pointing at a deleted
// account is returned without a summary.
func (s *VehicleService) withDriver(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	if v.DriverID == nil {
		return v, nil
	}
	acct, err := s.accounts.FindByID(ctx, *v.DriverID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.log.Warn().Str("vehicle_id", v.ID).Str("driver_id", *v.DriverID).Msg("vehicle references missing driver")
			return v, nil
		}
		return nil, domain.Internal("load driver", err)
	}
	v.Driver = &domain.DriverSummary{ID: acct.ID, Name: acct.Name, Email: acct.Email, Phone: acct.Phone}
	return v, nil
}

func (s *VehicleService) invalidate(ctx context.Context, vehicleID string, drivers ...string) error {
	keys := []string{cache.VehicleKey(vehicleID)}
	for _, d := range drivers {
		if d != "" {
			keys = append(keys, cache.VehicleByDriverKey(d))
		}
	}
	return s.cache.Invalidate(ctx, cache.Invalidation{
		Keys:     keys,
		Prefixes: []string{cache.VehicleListPrefix},
	})
}

func (s *VehicleService) checkYear(year int) error {
	if year < minVehicleYear || year > s.clock.Now().Year()+1 {
		return fmt.Errorf("%w: year %d out of range", domain.ErrValidation, year)
	}
	return nil
}

func normalizeFilter(f ports.VehicleFilter) (ports.VehicleFilter, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageLimit
	case f.Limit > maxPageLimit:
		f.Limit = maxPageLimit
	}
	switch f.SortBy {
	case "":
		f.SortBy = ports.SortByCreatedAt
	case ports.SortByCreatedAt, ports.SortByYear, ports.SortByPlateNumber, ports.SortByManufacturer:
	default:
		return f, fmt.Errorf("%w: cannot sort by %q", domain.ErrValidation, f.SortBy)
	}
	f.Type = strings.TrimSpace(f.Type)
	f.Manufacturer = strings.TrimSpace(f.Manufacturer)
	return f, nil
}

// filterSignature renders f as a canonical query string. Equal filters
// always produce equal signatures.
func filterSignature(f ports.VehicleFilter) string {
	q := url.Values{}
	q.Set("type", strings.ToLower(f.Type))
	q.Set("manufacturer", strings.ToLower(f.Manufacturer))
	q.Set("assigned", "any")
	if f.Assigned != nil {
		q.Set("assigned", strconv.FormatBool(*f.Assigned))
	}
	q.Set("sort", f.SortBy)
	q.Set("desc", strconv.FormatBool(f.Descending))
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("limit", strconv.Itoa(f.Limit))
	return q.Encode()
}

func vehicleErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
		return err
	}
	return domain.Internal(op, err)
}

func normalizePlate(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}

var _ ports.VehicleService = (*VehicleService)(nil)
