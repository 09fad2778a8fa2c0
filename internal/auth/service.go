package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 24 * time.Hour * 30
)

// Service orchestrates login, refresh, logout, and principal lifecycle. It
// owns the single-refresh-credential-per-user rotation invariant; all durable
// session state lives in the Store.
type Service struct {
	store Store
	codec *TokenCodec
	now   func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int

	// Static-admin deployment variant: credentials sourced from
	// configuration instead of the store. Empty adminEmail disables it.
	adminEmail string
	adminHash  string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithBcryptCost configures the password hashing work factor.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests). The codec shares
// the same clock so expiry checks stay consistent.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
			s.codec.now = fn
		}
		return nil
	}
}

// WithStaticAdmin enables the single-administrator variant: the given
// identity authenticates against configuration rather than the store and
// receives an access token only. The plaintext is hashed here and discarded.
func WithStaticAdmin(email, password string) ServiceOption {
	return func(s *Service) error {
		email = strings.TrimSpace(strings.ToLower(email))
		if email == "" || password == "" {
			return errors.New("auth: static admin requires both email and password")
		}
		hash, err := HashPassword(password, s.bcryptCost)
		if err != nil {
			return err
		}
		s.adminEmail = email
		s.adminHash = hash
		return nil
	}
}

// NewService constructs a Service with optional configuration.
func NewService(store Store, codec *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	svc := &Service{
		store:      store,
		codec:      codec,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Login authenticates email+password and issues a token pair. Unknown
// identity, inactive principal, and wrong secret all fail identically with
// ErrUnauthorized so callers cannot probe which case occurred.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, ErrUnauthorized
	}

	if s.adminEmail != "" && email == s.adminEmail {
		return s.loginStaticAdmin(password)
	}

	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, ErrUnauthorized
	}

	return s.mintTokens(ctx, user)
}

// loginStaticAdmin verifies configuration-sourced credentials. No store row
// exists for this principal, so no refresh credential can be rotated: the
// variant returns an access token only.
func (s *Service) loginStaticAdmin(password string) (TokenPair, error) {
	if err := VerifyPassword(s.adminHash, password); err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	admin := &User{
		ID:       0,
		Name:     "Admin",
		Username: "admin",
		Email:    s.adminEmail,
		Role:     RoleAdministrator,
		IsActive: true,
	}
	access, accessExp, err := s.codec.SignAccess(admin, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessExpiresAt: accessExp}, nil
}

// Refresh exchanges a previously issued refresh token for a fresh pair and
// rotates the persisted credential. The presented string must exactly equal
// the stored value: once exchanged, the old token is permanently dead even if
// unexpired.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	_, userID, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}

	rc, err := s.store.RefreshCredentials(ctx).FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if !tokensEqual(rc.Token, refreshToken) {
		return TokenPair{}, ErrUnauthorized
	}

	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrUnauthorized
	}

	return s.mintTokens(ctx, user)
}

// Logout revokes the principal's refresh credential. Idempotent: revoking an
// already-absent credential is not an error.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	err := s.store.RefreshCredentials(ctx).DeleteByUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Authenticate validates a bearer access token. Guard entry point.
func (s *Service) Authenticate(token string) (*AccessClaims, error) {
	return s.codec.VerifyAccess(token)
}

// GetUser loads a principal by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.store.Users(ctx).Find(ctx, id)
}

// SearchUsers runs a paginated, filtered principal listing.
func (s *Service) SearchUsers(ctx context.Context, q UserSearch) (*UserPage, error) {
	return s.store.Users(ctx).Search(ctx, q)
}

// DeleteUser removes a principal together with its refresh credential.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.Logout(ctx, id); err != nil {
		return err
	}
	return s.store.Users(ctx).Delete(ctx, id)
}

// Register creates a self-service Owner principal. Username and email must
// each be globally unique; the hash is computed here, before persistence.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username, email, and password are required", ErrInvalidInput)
	}

	users := s.store.Users(ctx)
	if _, err := users.FindByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("%w: username %q", ErrConflict, in.Username)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := users.FindByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: email %q", ErrConflict, in.Email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		Name:         in.Name,
		LastNames:    in.LastNames,
		Username:     in.Username,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: hash,
		Role:         RoleOwner,
		IsActive:     true,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser provisions a principal administratively with an explicit role.
func (s *Service) CreateUser(ctx context.Context, in RegisterInput, role Role) (*User, error) {
	user, err := s.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	if role != "" && role != user.Role {
		upd, err := s.store.Users(ctx).Update(ctx, user.ID, UserUpdate{Role: &role})
		if err != nil {
			return nil, err
		}
		return upd, nil
	}
	return user, nil
}

// UpdateUser applies an administrative update. A password change is re-hashed
// here so plaintext never reaches the store.
func (s *Service) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	if upd.Email != nil {
		normalized := strings.TrimSpace(strings.ToLower(*upd.Email))
		upd.Email = &normalized
	}
	user, err := s.store.Users(ctx).Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if upd.Password != nil && *upd.Password != "" {
		hash, err := HashPassword(*upd.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		if err := s.store.Users(ctx).UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// ChangePassword verifies the old secret before re-hashing the new one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if err := VerifyPassword(user.PasswordHash, oldPassword); err != nil {
		return ErrUnauthorized
	}
	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.Users(ctx).UpdatePassword(ctx, userID, hash)
}

// EnsureAdmin provisions the configured administrator principal when it does
// not exist yet. Called once at startup by store-backed deployments.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil
	}
	users := s.store.Users(ctx)
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	return users.Create(ctx, &User{
		Name:         "Admin",
		LastNames:    "Admin",
		Username:     "admin",
		Email:        email,
		PhoneNumber:  "",
		PasswordHash: hash,
		Role:         RoleAdministrator,
		IsActive:     true,
	})
}

func (s *Service) mintTokens(ctx context.Context, user *User) (TokenPair, error) {
	access, accessExp, err := s.codec.SignAccess(user, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.codec.SignRefresh(user.ID, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshCredentials(ctx).Upsert(ctx, user.ID, refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func tokensEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
