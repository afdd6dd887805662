package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fleetwise/fleet-api/internal/core/ports"
)

type ProfileHandler struct {
	profiles ports.ProfileService
}

func NewProfileHandler(profiles ports.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me returns the caller's profile.
//
// @Summary      Current profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Profile
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/me [get]
func (h *ProfileHandler) Me(c echo.Context) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}

	p, err := h.profiles.GetProfile(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateMe changes the caller's name and phone.
//
// @Summary      Update current profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  domain.Profile
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /users/me [patch]
func (h *ProfileHandler) UpdateMe(c echo.Context) error {
	accountID, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	p, err := h.profiles.UpdateProfile(c.Request().Context(), accountID, ports.UpdateProfileInput{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// FindByEmail looks an account up by email.
//
// @Summary      Find account by email
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        email  query     string  true  "Email address"
// @Success      200    {object}  domain.Profile
// @Failure      400    {object}  errorResponse
// @Failure      403    {object}  errorResponse
// @Failure      404    {object}  errorResponse
// @Router       /users [get]
func (h *ProfileHandler) FindByEmail(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email query parameter is required")
	}

	p, err := h.profiles.GetProfileByEmail(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
