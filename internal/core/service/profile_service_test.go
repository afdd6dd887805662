package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fleetwise/fleet-api/internal/core/cache"
	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

func newProfileFixture(t *testing.T) (*ProfileService, *authFixture) {
	t.Helper()
	f := newAuthFixture(t)
	return NewProfileService(f.store, newStubVehicleRepo(), f.layer, zerolog.Nop()), f
}

func strPtr(s string) *string { return &s }

func TestProfileService_CacheRoundTrip(t *testing.T) {
	svc, f := newProfileFixture(t)
	ctx := context.Background()
	reg := f.register(t, "pia@example.com", "pw", domain.RoleFleetManager)
	id := reg.Profile.ID

	before := f.store.findByID
	first, err := svc.GetProfile(ctx, id)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	second, err := svc.GetProfile(ctx, id)
	if err != nil {
		t.Fatalf("GetProfile (cached): %v", err)
	}
	if f.store.findByID-before != 1 {
		t.Fatalf("expected one store read, got %d", f.store.findByID-before)
	}
	if first.ID != second.ID || first.Email != second.Email || first.Name != second.Name {
		t.Fatalf("cached profile differs: %+v vs %+v", first, second)
	}
	if second.Role != domain.RoleFleetManager || !second.CreatedAt.Equal(reg.Profile.CreatedAt) {
		t.Fatalf("cached profile lost fields: %+v", second)
	}
}

func TestProfileService_UpdateInvalidates(t *testing.T) {
	svc, f := newProfileFixture(t)
	ctx := context.Background()
	reg := f.register(t, "quinn@example.com", "pw", "")
	id := reg.Profile.ID

	if _, err := svc.GetProfile(ctx, id); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if _, err := svc.GetProfileByEmail(ctx, "quinn@example.com"); err != nil {
		t.Fatalf("GetProfileByEmail: %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, id, ports.UpdateProfileInput{Name: strPtr("  Quinn Q "), Phone: strPtr("+34 600")})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Name != "Quinn Q" || updated.Phone != "+34 600" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if _, err := f.cache.Get(ctx, cache.ProfileKey(id)); err == nil {
		t.Fatalf("profile entry must be invalidated")
	}
	if _, err := f.cache.Get(ctx, cache.EmailKey("quinn@example.com")); err == nil {
		t.Fatalf("email entry must be invalidated")
	}

	got, err := svc.GetProfile(ctx, id)
	if err != nil || got.Name != "Quinn Q" {
		t.Fatalf("expected fresh profile after update, got %+v, %v", got, err)
	}
}

func TestProfileService_PartialUpdateKeepsOtherFields(t *testing.T) {
	svc, f := newProfileFixture(t)
	ctx := context.Background()
	reg := f.register(t, "rui@example.com", "pw", "")

	if _, err := svc.UpdateProfile(ctx, reg.Profile.ID, ports.UpdateProfileInput{Phone: strPtr("555")}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	got, _ := svc.GetProfile(ctx, reg.Profile.ID)
	if got.Name != "rui" || got.Phone != "555" {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestProfileService_NotFound(t *testing.T) {
	svc, f := newProfileFixture(t)
	ctx := context.Background()

	if _, err := svc.GetProfile(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.GetProfileByEmail(ctx, "missing@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "missing", ports.UpdateProfileInput{Name: strPtr("x")}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if f.cache.Len() != 0 {
		t.Fatalf("misses must not be cached")
	}
}

func TestProfileService_StoreFailureIsInternal(t *testing.T) {
	svc, f := newProfileFixture(t)
	f.store.failFind = errStoreDown

	if _, err := svc.GetProfile(context.Background(), "acc-1"); !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestProfileService_DriverRenameRefreshesVehicles(t *testing.T) {
	f := newVehicleFixture(t)
	ctx := context.Background()
	profiles := NewProfileService(f.store, f.repo, f.layer, zerolog.Nop())
	driver := f.register(t, "dora@example.com", "pw", domain.RoleDriver)
	v := f.create(t, "DR-1", driver.Profile.ID)

	// Warm every entry that embeds the driver summary.
	if _, err := f.svc.GetVehicle(ctx, v.ID); err != nil {
		t.Fatalf("GetVehicle: %v", err)
	}
	if _, err := f.svc.GetVehicleByDriver(ctx, driver.Profile.ID); err != nil {
		t.Fatalf("GetVehicleByDriver: %v", err)
	}
	if _, err := f.svc.ListVehicles(ctx, ports.VehicleFilter{}); err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}

	if _, err := profiles.UpdateProfile(ctx, driver.Profile.ID, ports.UpdateProfileInput{Name: strPtr("Renamed")}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	got, err := f.svc.GetVehicle(ctx, v.ID)
	if err != nil || got.Driver == nil || got.Driver.Name != "Renamed" {
		t.Fatalf("expected renamed driver on vehicle, got %+v, %v", got, err)
	}
	mine, err := f.svc.GetVehicleByDriver(ctx, driver.Profile.ID)
	if err != nil || mine.Driver == nil || mine.Driver.Name != "Renamed" {
		t.Fatalf("expected renamed driver on driver lookup, got %+v, %v", mine, err)
	}
	list, err := f.svc.ListVehicles(ctx, ports.VehicleFilter{})
	if err != nil || len(list.Items) != 1 || list.Items[0].Driver.Name != "Renamed" {
		t.Fatalf("expected renamed driver in list, got %+v, %v", list, err)
	}
}

func TestProfileService_NonDriverUpdateKeepsVehicleLists(t *testing.T) {
	f := newVehicleFixture(t)
	ctx := context.Background()
	profiles := NewProfileService(f.store, f.repo, f.layer, zerolog.Nop())
	manager := f.register(t, "max@example.com", "pw", domain.RoleFleetManager)
	f.create(t, "MG-1", "")

	if _, err := f.svc.ListVehicles(ctx, ports.VehicleFilter{}); err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if _, err := profiles.UpdateProfile(ctx, manager.Profile.ID, ports.UpdateProfileInput{Name: strPtr("Max")}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	before := f.repo.lists
	if _, err := f.svc.ListVehicles(ctx, ports.VehicleFilter{}); err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if f.repo.lists != before {
		t.Fatalf("list cache must survive a non-driver profile update")
	}
}
