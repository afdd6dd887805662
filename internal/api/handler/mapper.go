package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fleetwise/fleet-api/internal/core/ports"
)

// --- Request → Service input ---

func toRegisterInput(req registerRequest) ports.RegisterInput {
	return ports.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Role:     req.Role,
	}
}

func toCreateVehicleInput(req createVehicleRequest) ports.CreateVehicleInput {
	return ports.CreateVehicleInput{
		PlateNumber:  req.PlateNumber,
		Model:        req.Model,
		Manufacturer: req.Manufacturer,
		Year:         req.Year,
		Type:         req.Type,
		SimNumber:    req.SimNumber,
		DeviceID:     req.DeviceID,
		DriverID:     req.DriverID,
	}
}

func toUpdateVehicleInput(req updateVehicleRequest) ports.UpdateVehicleInput {
	return ports.UpdateVehicleInput{
		PlateNumber:  req.PlateNumber,
		Model:        req.Model,
		Manufacturer: req.Manufacturer,
		Year:         req.Year,
		Type:         req.Type,
		SimNumber:    req.SimNumber,
		DeviceID:     req.DeviceID,
	}
}

// toVehicleFilter reads list parameters from the query string:
// type, manufacturer, assigned=true|false, sort, order=asc|desc, page, limit.
// Order defaults to desc.
func toVehicleFilter(c echo.Context) (ports.VehicleFilter, error) {
	f := ports.VehicleFilter{
		Type:         c.QueryParam("type"),
		Manufacturer: c.QueryParam("manufacturer"),
		SortBy:       c.QueryParam("sort"),
		Descending:   true,
	}

	switch strings.ToLower(c.QueryParam("order")) {
	case "", "desc":
	case "asc":
		f.Descending = false
	default:
		return f, fmt.Errorf("order must be asc or desc")
	}

	if raw := c.QueryParam("assigned"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("assigned must be true or false")
		}
		f.Assigned = &v
	}

	var err error
	if f.Page, err = intParam(c, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(c, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}
