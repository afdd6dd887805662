package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fleetwise/fleet-api/internal/core/cache"
	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

// ProfileService serves account profiles through the cache. Vehicles are
// consulted because cached vehicles embed their driver's profile.
type ProfileService struct {
	accounts ports.AccountRepository
	vehicles ports.VehicleRepository
	cache    *cache.Layer
	log      zerolog.Logger
}

func NewProfileService(accounts ports.AccountRepository, vehicles ports.VehicleRepository, c *cache.Layer, log zerolog.Logger) *ProfileService {
	return &ProfileService{accounts: accounts, vehicles: vehicles, cache: c, log: log}
}

func (s *ProfileService) GetProfile(ctx context.Context, accountID string) (*domain.Profile, error) {
	return cache.ReadThrough(ctx, s.cache, cache.ProfileKey(accountID), cache.ProfileTTL,
		func(ctx context.Context) (*domain.Profile, error) {
			a, err := s.accounts.FindByID(ctx, accountID)
			if err != nil {
				return nil, accountErr("get profile", err)
			}
			return a.Profile(), nil
		})
}

func (s *ProfileService) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	email = normalizeEmail(email)
	return cache.ReadThrough(ctx, s.cache, cache.EmailKey(email), cache.ProfileTTL,
		func(ctx context.Context) (*domain.Profile, error) {
			a, err := s.accounts.FindByEmail(ctx, email)
			if err != nil {
				return nil, accountErr("get profile by email", err)
			}
			return a.Profile(), nil
		})
}

// UpdateProfile changes the provided fields and drops both cached views of
// the account. For drivers the vehicle entries carrying the old profile are
// dropped too.
func (s *ProfileService) UpdateProfile(ctx context.Context, accountID string, in ports.UpdateProfileInput) (*domain.Profile, error) {
	update := ports.AccountUpdate{Name: trimmed(in.Name), Phone: trimmed(in.Phone)}
	if update.Name == nil && update.Phone == nil {
		p, err := s.GetProfile(ctx, accountID)
		return p, err
	}

	updated, err := s.accounts.Update(ctx, accountID, update)
	if err != nil {
		return nil, accountErr("update profile", err)
	}

	inv := cache.Invalidation{
		Keys: []string{cache.ProfileKey(accountID), cache.EmailKey(updated.Email)},
	}
	if updated.Role == domain.RoleDriver {
		s.driverVehicleKeys(ctx, accountID, &inv)
	}
	if err := s.cache.Invalidate(ctx, inv); err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", accountID).Msg("profile updated")
	return updated.Profile(), nil
}

// driverVehicleKeys adds the entries embedding driverID's summary: the
// driver lookup, the assigned vehicle and every list. When the assigned
// vehicle cannot be resolved all vehicle entries are dropped.
func (s *ProfileService) driverVehicleKeys(ctx context.Context, driverID string, inv *cache.Invalidation) {
	inv.Keys = append(inv.Keys, cache.VehicleByDriverKey(driverID))

	v, err := s.vehicles.FindByDriver(ctx, driverID)
	switch {
	case err == nil:
		inv.Keys = append(inv.Keys, cache.VehicleKey(v.ID))
		inv.Prefixes = append(inv.Prefixes, cache.VehicleListPrefix)
	case errors.Is(err, domain.ErrVehicleNotFound):
	default:
		s.log.Warn().Err(err).Str("driver_id", driverID).Msg("cannot resolve driver vehicle, dropping all vehicle entries")
		inv.Prefixes = append(inv.Prefixes, cache.VehiclePrefix)
	}
}

func accountErr(op string, err error) error {
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.ErrAccountNotFound
	}
	return domain.Internal(op, err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

var _ ports.ProfileService = (*ProfileService)(nil)
