package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwise/fleet-api/internal/api/handler"
	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
	"github.com/fleetwise/fleet-api/internal/core/security"
)

// Only the methods the tests call are overridden; the embedded nil
// interfaces panic if anything else is reached.
type fakeAuth struct {
	ports.AuthService
	refreshed []string
}

func (f *fakeAuth) Refresh(_ context.Context, accountID, token string) (*domain.TokenPair, error) {
	f.refreshed = append(f.refreshed, accountID, token)
	return &domain.TokenPair{AccessToken: "next"}, nil
}

func (f *fakeAuth) Logout(context.Context, string) error { return nil }

type fakeProfiles struct{ ports.ProfileService }

func (fakeProfiles) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	return &domain.Profile{ID: id}, nil
}

func (fakeProfiles) GetProfileByEmail(_ context.Context, email string) (*domain.Profile, error) {
	return nil, domain.ErrAccountNotFound
}

type fakeVehicles struct{ ports.VehicleService }

func (fakeVehicles) ListVehicles(context.Context, ports.VehicleFilter) (*ports.ListVehiclesResult, error) {
	return &ports.ListVehiclesResult{Page: 1, Limit: 10}, nil
}

func (fakeVehicles) DeleteVehicle(context.Context, string) error { return nil }

func (fakeVehicles) GetVehicleByDriver(context.Context, string) (*domain.Vehicle, error) {
	return nil, domain.ErrVehicleNotFound
}

func (fakeVehicles) CreateVehicle(context.Context, ports.CreateVehicleInput) (*domain.Vehicle, error) {
	return nil, domain.Internal("vehicle.create", context.DeadlineExceeded)
}

type routerFixture struct {
	e      *echo.Echo
	tokens *security.TokenIssuer
	auth   *fakeAuth
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	tokens, err := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, nil)
	require.NoError(t, err)

	auth := &fakeAuth{}
	e := NewRouter(Deps{
		Auth:       auth,
		Profiles:   fakeProfiles{},
		Vehicles:   fakeVehicles{},
		Tokens:     tokens,
		Checks:     map[string]handler.Check{"mongo": func(context.Context) error { return nil }},
		Log:        zerolog.Nop(),
		Registerer: prometheus.NewRegistry(),
	})
	return &routerFixture{e: e, tokens: tokens, auth: auth}
}

func (f *routerFixture) pair(t *testing.T, role domain.Role) *domain.TokenPair {
	t.Helper()
	p, err := f.tokens.IssuePair(domain.SessionClaims{Subject: "acc-1", Email: "ana@example.com", Role: role})
	require.NoError(t, err)
	return p
}

func (f *routerFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RoleGates(t *testing.T) {
	f := newRouterFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		role   domain.Role
		want   int
	}{
		{"anyone lists vehicles", http.MethodGet, "/v1/vehicles", domain.RoleUser, http.StatusOK},
		{"user cannot delete", http.MethodDelete, "/v1/vehicles/v1", domain.RoleUser, http.StatusForbidden},
		{"manager cannot delete", http.MethodDelete, "/v1/vehicles/v1", domain.RoleFleetManager, http.StatusForbidden},
		{"admin deletes", http.MethodDelete, "/v1/vehicles/v1", domain.RoleAdmin, http.StatusNoContent},
		{"user cannot create", http.MethodPost, "/v1/vehicles", domain.RoleUser, http.StatusForbidden},
		{"driver route rejects admin", http.MethodGet, "/v1/drivers/me/vehicle", domain.RoleAdmin, http.StatusForbidden},
		{"driver without vehicle", http.MethodGet, "/v1/drivers/me/vehicle", domain.RoleDriver, http.StatusNotFound},
		{"user lookup is admin only", http.MethodGet, "/users?email=x@example.com", domain.RoleFleetManager, http.StatusForbidden},
		{"admin lookup miss", http.MethodGet, "/users?email=x@example.com", domain.RoleAdmin, http.StatusNotFound},
		{"own profile", http.MethodGet, "/users/me", domain.RoleDriver, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, f.pair(t, tt.role).AccessToken)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_RequiresAccessToken(t *testing.T) {
	f := newRouterFixture(t)
	pair := f.pair(t, domain.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/v1/vehicles", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/v1/vehicles", pair.RefreshToken).Code,
		"refresh token must not authorise resource routes")
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/auth/logout", "garbage").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/auth/logout", pair.AccessToken).Code)
}

func TestRouter_RefreshTakesRefreshToken(t *testing.T) {
	f := newRouterFixture(t)
	pair := f.pair(t, domain.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/auth/refresh", pair.AccessToken).Code)

	rec := f.do(http.MethodPost, "/auth/refresh", pair.RefreshToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"acc-1", pair.RefreshToken}, f.auth.refreshed)
}

func TestRouter_InternalErrorsAreMasked(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/vehicles",
		jsonBody(`{"plate_number":"A1","model":"M","manufacturer":"F","year":2020,"type":"van"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+f.pair(t, domain.RoleAdmin).AccessToken)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health/ready", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/nope", "").Code)
}
