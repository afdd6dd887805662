package handler

import (
	"context"
	"io"
	"net/http/httptest"

	"github.com/labstack/echo/v4"

	"github.com/fleetwise/fleet-api/internal/api/middleware"
	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn       func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error)
	loginFn          func(ctx context.Context, email, password string) (*ports.AuthResult, error)
	refreshFn        func(ctx context.Context, accountID, token string) (*domain.TokenPair, error)
	logoutFn         func(ctx context.Context, accountID string) error
	changePasswordFn func(ctx context.Context, accountID, current, next string) error
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Refresh(ctx context.Context, accountID, token string) (*domain.TokenPair, error) {
	return s.refreshFn(ctx, accountID, token)
}

func (s *stubAuthService) Logout(ctx context.Context, accountID string) error {
	return s.logoutFn(ctx, accountID)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, accountID, current, next string) error {
	return s.changePasswordFn(ctx, accountID, current, next)
}

type stubProfileService struct {
	getFn     func(ctx context.Context, accountID string) (*domain.Profile, error)
	byEmailFn func(ctx context.Context, email string) (*domain.Profile, error)
	updateFn  func(ctx context.Context, accountID string, in ports.UpdateProfileInput) (*domain.Profile, error)
}

func (s *stubProfileService) GetProfile(ctx context.Context, accountID string) (*domain.Profile, error) {
	return s.getFn(ctx, accountID)
}

func (s *stubProfileService) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return s.byEmailFn(ctx, email)
}

func (s *stubProfileService) UpdateProfile(ctx context.Context, accountID string, in ports.UpdateProfileInput) (*domain.Profile, error) {
	return s.updateFn(ctx, accountID, in)
}

type stubVehicleService struct {
	createFn   func(ctx context.Context, in ports.CreateVehicleInput) (*domain.Vehicle, error)
	getFn      func(ctx context.Context, id string) (*domain.Vehicle, error)
	byDriverFn func(ctx context.Context, driverID string) (*domain.Vehicle, error)
	listFn     func(ctx context.Context, f ports.VehicleFilter) (*ports.ListVehiclesResult, error)
	updateFn   func(ctx context.Context, id string, in ports.UpdateVehicleInput) (*domain.Vehicle, error)
	deleteFn   func(ctx context.Context, id string) error
	assignFn   func(ctx context.Context, vehicleID, driverID string) (*domain.Vehicle, error)
	unassignFn func(ctx context.Context, vehicleID string) (*domain.Vehicle, error)
}

func (s *stubVehicleService) CreateVehicle(ctx context.Context, in ports.CreateVehicleInput) (*domain.Vehicle, error) {
	return s.createFn(ctx, in)
}

func (s *stubVehicleService) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	return s.getFn(ctx, id)
}

func (s *stubVehicleService) GetVehicleByDriver(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	return s.byDriverFn(ctx, driverID)
}

func (s *stubVehicleService) ListVehicles(ctx context.Context, f ports.VehicleFilter) (*ports.ListVehiclesResult, error) {
	return s.listFn(ctx, f)
}

func (s *stubVehicleService) UpdateVehicle(ctx context.Context, id string, in ports.UpdateVehicleInput) (*domain.Vehicle, error) {
	return s.updateFn(ctx, id, in)
}

func (s *stubVehicleService) DeleteVehicle(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func (s *stubVehicleService) AssignDriver(ctx context.Context, vehicleID, driverID string) (*domain.Vehicle, error) {
	return s.assignFn(ctx, vehicleID, driverID)
}

func (s *stubVehicleService) UnassignDriver(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	return s.unassignFn(ctx, vehicleID)
}

// newContext builds an echo context with the validator installed. A JSON
// body is sent when body is non-nil.
func newContext(method, target string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// authenticate mimics the Auth middleware.
func authenticate(c echo.Context, accountID string, role domain.Role) {
	c.Set(middleware.KeyAccountID, accountID)
	c.Set(middleware.KeyRole, role)
}

func httpCode(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}
