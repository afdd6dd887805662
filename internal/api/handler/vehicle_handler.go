package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fleetwise/fleet-api/internal/core/ports"
)

// VehicleHandler handles HTTP requests for vehicle operations.
type VehicleHandler struct {
	service ports.VehicleService
}

func NewVehicleHandler(service ports.VehicleService) *VehicleHandler {
	return &VehicleHandler{service: service}
}

// Create handles POST /v1/vehicles.
//
// @Summary      Register a vehicle
// @Tags         vehicles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createVehicleRequest  true  "Vehicle"
// @Success      201   {object}  domain.Vehicle
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/vehicles [post]
func (h *VehicleHandler) Create(c echo.Context) error {
	var req createVehicleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	v, err := h.service.CreateVehicle(c.Request().Context(), toCreateVehicleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

// List handles GET /v1/vehicles.
//
// @Summary      List vehicles
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Param        type          query     string  false  "Type substring"
// @Param        manufacturer  query     string  false  "Manufacturer substring"
// @Param        assigned      query     bool    false  "Only vehicles with (true) or without (false) a driver"
// @Param        sort          query     string  false  "createdAt, year, plateNumber or manufacturer"
// @Param        order         query     string  false  "asc or desc (default desc)"
// @Param        page          query     int     false  "Page, 1-based"
// @Param        limit         query     int     false  "Page size, max 100"
// @Success      200           {object}  ports.ListVehiclesResult
// @Failure      400           {object}  errorResponse
// @Failure      422           {object}  errorResponse
// @Router       /v1/vehicles [get]
func (h *VehicleHandler) List(c echo.Context) error {
	filter, err := toVehicleFilter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.ListVehicles(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/vehicles/:id.
//
// @Summary      Get a vehicle
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Vehicle id"
// @Success      200  {object}  domain.Vehicle
// @Failure      404  {object}  errorResponse
// @Router       /v1/vehicles/{id} [get]
func (h *VehicleHandler) Get(c echo.Context) error {
	v, err := h.service.GetVehicle(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// Update handles PATCH /v1/vehicles/:id.
//
// @Summary      Update a vehicle
// @Tags         vehicles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Vehicle id"
// @Param        body  body      updateVehicleRequest  true  "Fields to change"
// @Success      200   {object}  domain.Vehicle
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/vehicles/{id} [patch]
func (h *VehicleHandler) Update(c echo.Context) error {
	var req updateVehicleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	v, err := h.service.UpdateVehicle(c.Request().Context(), c.Param("id"), toUpdateVehicleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /v1/vehicles/:id.
//
// @Summary      Delete a vehicle
// @Tags         vehicles
// @Security     BearerAuth
// @Param        id   path  string  true  "Vehicle id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/vehicles/{id} [delete]
func (h *VehicleHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteVehicle(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignDriver handles PATCH /v1/vehicles/:id/assign-driver.
//
// @Summary      Assign a driver
// @Tags         vehicles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Vehicle id"
// @Param        body  body      assignDriverRequest  true  "Driver"
// @Success      200   {object}  domain.Vehicle
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/vehicles/{id}/assign-driver [patch]
func (h *VehicleHandler) AssignDriver(c echo.Context) error {
	var req assignDriverRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	v, err := h.service.AssignDriver(c.Request().Context(), c.Param("id"), req.DriverID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// UnassignDriver handles PATCH /v1/vehicles/:id/unassign-driver.
//
// @Summary      Remove the driver
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Vehicle id"
// @Success      200  {object}  domain.Vehicle
// @Failure      404  {object}  errorResponse
// @Router       /v1/vehicles/{id}/unassign-driver [patch]
func (h *VehicleHandler) UnassignDriver(c echo.Context) error {
	v, err := h.service.UnassignDriver(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// MyVehicle handles GET /v1/drivers/me/vehicle.
//
// @Summary      Vehicle assigned to the calling driver
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Vehicle
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/drivers/me/vehicle [get]
func (h *VehicleHandler) MyVehicle(c echo.Context) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}

	v, err := h.service.GetVehicleByDriver(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}
