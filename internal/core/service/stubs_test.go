package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetwise/fleet-api/internal/core/cache"
	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
	"github.com/fleetwise/fleet-api/internal/core/security"
	"github.com/fleetwise/fleet-api/internal/infrastructure/db/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubAccountStore implements AccountRepository and SessionStore in memory.
type stubAccountStore struct {
	mu         sync.Mutex
	accounts   map[string]*domain.Account
	seq        int
	findByID   int
	failFind   error
	failCreate error
}

func newStubAccountStore() *stubAccountStore {
	return &stubAccountStore{accounts: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.RefreshTokenHash != nil {
		h := *a.RefreshTokenHash
		c.RefreshTokenHash = &h
	}
	return &c
}

func (s *stubAccountStore) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return nil, s.failFind
	}
	for _, a := range s.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (s *stubAccountStore) FindByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findByID++
	if s.failFind != nil {
		return nil, s.failFind
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (s *stubAccountStore) NextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("acc-%d", s.seq)
}

func (s *stubAccountStore) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return nil, s.failCreate
	}
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return nil, domain.ErrEmailTaken
		}
	}
	c := cloneAccount(a)
	if c.ID == "" {
		s.seq++
		c.ID = fmt.Sprintf("acc-%d", s.seq)
	}
	s.accounts[c.ID] = c
	return cloneAccount(c), nil
}

func (s *stubAccountStore) Update(_ context.Context, id string, u ports.AccountUpdate) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Phone != nil {
		a.Phone = *u.Phone
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.ClearRefreshHash {
		a.RefreshTokenHash = nil
	}
	a.UpdatedAt = a.UpdatedAt.Add(time.Second)
	return cloneAccount(a), nil
}

func (s *stubAccountStore) SetRefreshHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.RefreshTokenHash = &hash
	return nil
}

func (s *stubAccountStore) GetRefreshHash(_ context.Context, id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.RefreshTokenHash == nil {
		return "", false, nil
	}
	return *a.RefreshTokenHash, true, nil
}

func (s *stubAccountStore) ClearRefreshHash(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.RefreshTokenHash = nil
	}
	return nil
}

func (s *stubAccountStore) SwapRefreshHash(_ context.Context, id, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.RefreshTokenHash == nil || *a.RefreshTokenHash != expected {
		return domain.ErrRefreshTokenReused
	}
	a.RefreshTokenHash = &next
	return nil
}

func (s *stubAccountStore) refreshHash(id string) string {
	h, _, _ := s.GetRefreshHash(context.Background(), id)
	return h
}

// recordingAuditor collects enqueued events.
type recordingAuditor struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (r *recordingAuditor) Enqueue(e domain.SessionEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingAuditor) kinds() []domain.SessionEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SessionEventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type authFixture struct {
	svc     *AuthService
	store   *stubAccountStore
	cache   *memory.Cache
	layer   *cache.Layer
	clock   *fakeClock
	issuer  *security.TokenIssuer
	auditor *recordingAuditor
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := newFakeClock()
	issuer, err := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	}, clock)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	store := newStubAccountStore()
	mem := memory.NewCache()
	layer := cache.NewLayer(mem, zerolog.Nop())
	auditor := &recordingAuditor{}

	svc := NewAuthService(AuthDeps{
		Accounts: store,
		Sessions: store,
		Hasher:   security.NewBcryptHasher(4),
		Tokens:   issuer,
		Cache:    layer,
		Audit:    auditor,
		Clock:    clock,
		Log:      zerolog.Nop(),
	})
	return &authFixture{svc: svc, store: store, cache: mem, layer: layer, clock: clock, issuer: issuer, auditor: auditor}
}

func (f *authFixture) register(t *testing.T, email, password string, role domain.Role) *ports.AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), ports.RegisterInput{
		Email:    email,
		Password: password,
		Name:     strings.Split(email, "@")[0],
		Role:     role.String(),
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}

// stubVehicleRepo is an in-memory VehicleRepository enforcing the plate and
// driver uniqueness the Mongo indexes provide.
type stubVehicleRepo struct {
	mu       sync.Mutex
	vehicles map[string]*domain.Vehicle
	seq      int
	reads    int
	lists    int
	failList error
}

func newStubVehicleRepo() *stubVehicleRepo {
	return &stubVehicleRepo{vehicles: make(map[string]*domain.Vehicle)}
}

func cloneVehicle(v *domain.Vehicle) *domain.Vehicle {
	c := *v
	if v.DriverID != nil {
		d := *v.DriverID
		c.DriverID = &d
	}
	c.Driver = nil
	return &c
}

func (r *stubVehicleRepo) conflictLocked(id, plate string, driverID *string) error {
	for _, v := range r.vehicles {
		if v.ID == id {
			continue
		}
		if strings.EqualFold(v.PlateNumber, plate) {
			return domain.ErrPlateTaken
		}
		if driverID != nil && v.DriverID != nil && *v.DriverID == *driverID {
			return domain.ErrDriverAlreadyAssigned
		}
	}
	return nil
}

func (r *stubVehicleRepo) Create(_ context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflictLocked("", v.PlateNumber, v.DriverID); err != nil {
		return nil, err
	}
	r.seq++
	c := cloneVehicle(v)
	c.ID = fmt.Sprintf("veh-%d", r.seq)
	r.vehicles[c.ID] = c
	return cloneVehicle(c), nil
}

func (r *stubVehicleRepo) FindByID(_ context.Context, id string) (*domain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	v, ok := r.vehicles[id]
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	return cloneVehicle(v), nil
}

func (r *stubVehicleRepo) FindByPlate(_ context.Context, plate string) (*domain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vehicles {
		if strings.EqualFold(v.PlateNumber, plate) {
			return cloneVehicle(v), nil
		}
	}
	return nil, domain.ErrVehicleNotFound
}

func (r *stubVehicleRepo) FindByDriver(_ context.Context, driverID string) (*domain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	for _, v := range r.vehicles {
		if v.DriverID != nil && *v.DriverID == driverID {
			return cloneVehicle(v), nil
		}
	}
	return nil, domain.ErrVehicleNotFound
}

func (r *stubVehicleRepo) List(_ context.Context, f ports.VehicleFilter) ([]*domain.Vehicle, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.failList != nil {
		return nil, 0, r.failList
	}

	var matched []*domain.Vehicle
	for _, v := range r.vehicles {
		if f.Type != "" && !strings.Contains(strings.ToLower(v.Type), strings.ToLower(f.Type)) {
			continue
		}
		if f.Manufacturer != "" && !strings.Contains(strings.ToLower(v.Manufacturer), strings.ToLower(f.Manufacturer)) {
			continue
		}
		if f.Assigned != nil && (v.DriverID != nil) != *f.Assigned {
			continue
		}
		matched = append(matched, cloneVehicle(v))
	}
	sort.Slice(matched, func(i, j int) bool {
		less := matched[i].ID < matched[j].ID
		if f.SortBy == ports.SortByYear {
			less = matched[i].Year < matched[j].Year
		}
		if f.Descending {
			return !less
		}
		return less
	})

	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start >= len(matched) {
		return []*domain.Vehicle{}, total, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *stubVehicleRepo) Update(_ context.Context, id string, u ports.VehicleUpdate) (*domain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	plate := v.PlateNumber
	if u.PlateNumber != nil {
		plate = *u.PlateNumber
	}
	var driver *string
	if u.DriverID != nil {
		driver = *u.DriverID
	}
	if err := r.conflictLocked(id, plate, driver); err != nil {
		return nil, err
	}

	v.PlateNumber = plate
	if u.Model != nil {
		v.Model = *u.Model
	}
	if u.Manufacturer != nil {
		v.Manufacturer = *u.Manufacturer
	}
	if u.Year != nil {
		v.Year = *u.Year
	}
	if u.Type != nil {
		v.Type = *u.Type
	}
	if u.SimNumber != nil {
		v.SimNumber = *u.SimNumber
	}
	if u.DeviceID != nil {
		v.DeviceID = *u.DeviceID
	}
	if u.DriverID != nil {
		v.DriverID = driver
	}
	return cloneVehicle(v), nil
}

func (r *stubVehicleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[id]; !ok {
		return domain.ErrVehicleNotFound
	}
	delete(r.vehicles, id)
	return nil
}

var errStoreDown = errors.New("server selection timeout")
