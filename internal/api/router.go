package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/fleetwise/fleet-api/docs"
	"github.com/fleetwise/fleet-api/internal/api/handler"
	"github.com/fleetwise/fleet-api/internal/api/middleware"
	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Auth     ports.AuthService
	Profiles ports.ProfileService
	Vehicles ports.VehicleService
	Tokens   ports.TokenIssuer
	Checks   map[string]handler.Check
	Log      zerolog.Logger
	// Registerer receives the HTTP metrics; nil selects the default registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "fleet",
		Subsystem:  "http",
		Registerer: d.Registerer,
	}))

	requireAuth := middleware.Auth(d.Tokens)
	managers := middleware.RBAC(domain.RoleAdmin, domain.RoleFleetManager)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth)
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh, middleware.RefreshAuth(d.Tokens))
	auth.POST("/logout", authHandler.Logout, requireAuth)
	auth.PATCH("/password", authHandler.ChangePassword, requireAuth)

	// --- User routes ---
	profileHandler := handler.NewProfileHandler(d.Profiles)
	users := e.Group("/users", requireAuth)
	users.GET("/me", profileHandler.Me)
	users.PATCH("/me", profileHandler.UpdateMe)
	users.GET("", profileHandler.FindByEmail, middleware.RBAC(domain.RoleAdmin))

	// --- Vehicle routes ---
	vehicleHandler := handler.NewVehicleHandler(d.Vehicles)
	v1 := e.Group("/v1", requireAuth)
	v1.GET("/vehicles", vehicleHandler.List)
	v1.GET("/vehicles/:id", vehicleHandler.Get)
	v1.POST("/vehicles", vehicleHandler.Create, managers)
	v1.PATCH("/vehicles/:id", vehicleHandler.Update, managers)
	v1.DELETE("/vehicles/:id", vehicleHandler.Delete, middleware.RBAC(domain.RoleAdmin))
	v1.PATCH("/vehicles/:id/assign-driver", vehicleHandler.AssignDriver, managers)
	v1.PATCH("/vehicles/:id/unassign-driver", vehicleHandler.UnassignDriver, managers)
	v1.GET("/drivers/me/vehicle", vehicleHandler.MyVehicle, middleware.RBAC(domain.RoleDriver))

	// --- Health checks (no auth required) ---
	healthHandler := handler.NewHealthHandler(d.Checks)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
