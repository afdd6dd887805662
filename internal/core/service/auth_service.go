package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetwise/fleet-api/internal/core/cache"
	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
	"github.com/fleetwise/fleet-api/internal/core/security"
	"github.com/fleetwise/fleet-api/internal/pkg/metrics"
)

const (
	opRegister       = "register"
	opLogin          = "login"
	opRefresh        = "refresh"
	opLogout         = "logout"
	opChangePassword = "change_password"
)

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Accounts ports.AccountRepository
	Sessions ports.SessionStore
	Hasher   ports.PasswordHasher
	Tokens   ports.TokenIssuer
	Cache    *cache.Layer
	Audit    ports.SessionAuditor // optional
	Clock    ports.Clock          // optional, defaults to security.SystemClock
	Log      zerolog.Logger
}

// AuthService orchestrates the session lifecycle: registration, login,
// refresh-token rotation, logout and password change.
type AuthService struct {
	accounts ports.AccountRepository
	sessions ports.SessionStore
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	cache    *cache.Layer
	audit    ports.SessionAuditor
	clock    ports.Clock
	log      zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(d AuthDeps) *AuthService {
	clock := d.Clock
	if clock == nil {
		clock = security.SystemClock{}
	}
	return &AuthService{
		accounts: d.Accounts,
		sessions: d.Sessions,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		cache:    d.Cache,
		audit:    d.Audit,
		clock:    clock,
		log:      d.Log,
	}
}

// Register creates an account and opens its first session.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (res *ports.AuthResult, err error) {
	defer s.observe(opRegister, time.Now(), &err)

	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if err := checkPassword("password", in.Password); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	// 1. Reject known emails early; the unique index covers the race.
	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.Internal("register: find account", err)
	}

	// 2. Hash the password and issue the first pair against a reserved id,
	// so the account and its session are written by a single insert.
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, domain.Internal("register: hash password", err)
	}
	now := s.clock.Now()
	acct := &domain.Account{
		ID:           s.accounts.NextID(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	pair, err := s.tokens.IssuePair(domain.ClaimsFor(acct))
	if err != nil {
		return nil, domain.Internal("register: issue tokens", err)
	}
	refreshHash := security.HashRefreshToken(pair.RefreshToken)
	acct.RefreshTokenHash = &refreshHash

	// 3. Persist.
	created, err := s.accounts.Create(ctx, acct)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.Internal("register: create account", err)
	}

	s.emit(created.ID, domain.EventRegistered)
	s.log.Info().Str("account_id", created.ID).Str("role", role.String()).Msg("account registered")
	return &ports.AuthResult{Profile: created.Profile(), Tokens: pair}, nil
}

// Login verifies credentials and replaces any existing session. Unknown
// emails and wrong passwords are reported identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *ports.AuthResult, err error) {
	defer s.observe(opLogin, time.Now(), &err)

	acct, err := s.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.Internal("login: find account", err)
		}
		s.hasher.Verify(password, s.dummy())
		s.emit("", domain.EventLoginFailed)
		return nil, domain.ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, acct.PasswordHash) {
		s.emit(acct.ID, domain.EventLoginFailed)
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := s.startSession(ctx, acct)
	if err != nil {
		return nil, err
	}

	s.emit(acct.ID, domain.EventLogin)
	return &ports.AuthResult{Profile: acct.Profile(), Tokens: pair}, nil
}

// Refresh redeems refreshToken for a new pair and rotates the stored hash.
// A token can be redeemed once; concurrent redemptions of the same token
// resolve to a single winner.
func (s *AuthService) Refresh(ctx context.Context, accountID, refreshToken string) (pair *domain.TokenPair, err error) {
	defer s.observe(opRefresh, time.Now(), &err)

	claims, err := s.tokens.Verify(refreshToken, domain.TokenRefresh)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, s.rejectRefresh(accountID, "token did not verify")
		}
		return nil, domain.Internal("refresh: verify token", err)
	}
	if accountID == "" || claims.Subject != accountID {
		return nil, s.rejectRefresh(accountID, "subject mismatch")
	}

	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, s.rejectRefresh(accountID, "account gone")
		}
		return nil, domain.Internal("refresh: find account", err)
	}

	stored, found, err := s.sessions.GetRefreshHash(ctx, accountID)
	if err != nil {
		return nil, domain.Internal("refresh: load session", err)
	}
	if !found {
		return nil, s.rejectRefresh(accountID, "no active session")
	}
	if !security.RefreshTokenMatches(refreshToken, stored) {
		return nil, s.rejectRefresh(accountID, "token does not match session")
	}

	pair, err = s.tokens.IssuePair(domain.ClaimsFor(acct))
	if err != nil {
		return nil, domain.Internal("refresh: issue tokens", err)
	}

	// Only the caller whose expected hash is still current may rotate.
	if err := s.sessions.SwapRefreshHash(ctx, accountID, stored, security.HashRefreshToken(pair.RefreshToken)); err != nil {
		if errors.Is(err, domain.ErrRefreshTokenReused) {
			return nil, s.rejectRefresh(accountID, "lost rotation race")
		}
		return nil, domain.Internal("refresh: rotate session", err)
	}

	s.emit(accountID, domain.EventRefreshed)
	return pair, nil
}

// Logout ends the session of accountID. It is idempotent.
func (s *AuthService) Logout(ctx context.Context, accountID string) (err error) {
	defer s.observe(opLogout, time.Now(), &err)

	if err := s.sessions.ClearRefreshHash(ctx, accountID); err != nil {
		return domain.Internal("logout: clear session", err)
	}
	if err := s.cache.Invalidate(ctx, cache.Invalidation{
		Keys: []string{cache.ProfileKey(accountID), cache.SessionKey(accountID)},
	}); err != nil {
		return err
	}

	s.emit(accountID, domain.EventLogout)
	return nil
}

// ChangePassword replaces the password after verifying the current one.
// The active session is dropped in the same write.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, current, next string) (err error) {
	defer s.observe(opChangePassword, time.Now(), &err)

	if err := checkPassword("new password", next); err != nil {
		return err
	}

	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrInvalidCredentials
		}
		return domain.Internal("change password: find account", err)
	}
	if !s.hasher.Verify(current, acct.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return domain.Internal("change password: hash password", err)
	}
	if _, err := s.accounts.Update(ctx, accountID, ports.AccountUpdate{
		PasswordHash:     &hash,
		ClearRefreshHash: true,
	}); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrInvalidCredentials
		}
		return domain.Internal("change password: update account", err)
	}

	if err := s.cache.Invalidate(ctx, cache.Invalidation{
		Keys: []string{
			cache.ProfileKey(accountID),
			cache.EmailKey(acct.Email),
			cache.SessionKey(accountID),
		},
	}); err != nil {
		return err
	}

	s.emit(accountID, domain.EventPasswordChanged)
	s.log.Info().Str("account_id", accountID).Msg("password changed")
	return nil
}

// startSession issues a pair for a and records its refresh hash,
// overwriting any previous session.
func (s *AuthService) startSession(ctx context.Context, a *domain.Account) (*domain.TokenPair, error) {
	pair, err := s.tokens.IssuePair(domain.ClaimsFor(a))
	if err != nil {
		return nil, domain.Internal("issue tokens", err)
	}
	if err := s.sessions.SetRefreshHash(ctx, a.ID, security.HashRefreshToken(pair.RefreshToken)); err != nil {
		return nil, domain.Internal("store session", err)
	}
	return pair, nil
}

func (s *AuthService) rejectRefresh(accountID, reason string) error {
	s.log.Debug().Str("account_id", accountID).Str("reason", reason).Msg("refresh rejected")
	s.emit(accountID, domain.EventRefreshRejected)
	return domain.ErrInvalidRefreshToken
}

// dummy returns a digest that no password matches, used to spend the same
// hashing time on unknown emails as on real ones.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("fleet-api/no-such-account")
		if err != nil {
			s.log.Warn().Err(err).Msg("cannot prepare dummy password hash")
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AuthService) emit(accountID string, kind domain.SessionEventKind) {
	if s.audit == nil {
		return
	}
	s.audit.Enqueue(domain.SessionEvent{AccountID: accountID, Kind: kind, At: s.clock.Now()})
}

func (s *AuthService) observe(op string, start time.Time, errp *error) {
	metrics.AuthOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.AuthOperationsTotal.WithLabelValues(op, resultLabel(*errp)).Inc()
}

// resultLabel maps an error onto its category for metric labels.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// normalizeEmail trims surrounding space. Emails are case-sensitive as
// stored.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// checkPassword rejects passwords bcrypt cannot hash. The limit counts
// bytes, not characters.
func checkPassword(field, password string) error {
	if password == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	if len(password) > security.MaxPasswordBytes {
		return fmt.Errorf("%w: %s must be at most %d bytes", domain.ErrValidation, field, security.MaxPasswordBytes)
	}
	return nil
}

var _ ports.AuthService = (*AuthService)(nil)
