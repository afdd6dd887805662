package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fleetwise/fleet-api/internal/api/middleware"
)

// currentAccount returns the account id injected by the Auth middleware.
// Its absence means the route was mounted without Auth.
func currentAccount(c echo.Context) (string, error) {
	id := middleware.AccountID(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}

// bindAndValidate decodes the request body into req and runs the validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
