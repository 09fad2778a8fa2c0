package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse authorization level of a principal.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleOwner         Role = "owner"
)

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleAdministrator:
		return RoleAdministrator, nil
	case RoleOwner:
		return RoleOwner, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
}

// User is a principal able to authenticate against the service. PasswordHash
// is never serialized and never logged.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	LastNames    string    `json:"last_names"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phone_number"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshCredential is the single rotating refresh token persisted per user.
// The unique index on UserID is the consistency anchor: at most one live
// credential exists per principal.
type RefreshCredential struct {
	ID        int64
	UserID    int64
	Token     string
	UpdatedAt time.Time
}

// TokenPair is the result of a successful login or refresh. RefreshToken is
// empty for the static-admin login variant.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitzero"`
}

// RegisterInput carries the fields of a self-service registration. Role is
// always Owner; administrators are provisioned, not registered.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	Name        string
	LastNames   string
	PhoneNumber string
}

// UserUpdate carries optional field changes for an administrative update.
// Nil pointers leave the stored value untouched.
type UserUpdate struct {
	Name        *string
	LastNames   *string
	Username    *string
	Email       *string
	PhoneNumber *string
	Role        *Role
	IsActive    *bool
	Password    *string
}

// UserSearch is a paginated, filtered user listing request.
type UserSearch struct {
	Search         string
	Role           *Role
	IsActive       *bool
	Page           int
	PageSize       int
	OrderBy        string
	OrderDirection string
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps pagination bounds and trims the free-text filter.
func (q *UserSearch) Normalize() {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
}

// UserPage is the paginated search result envelope.
type UserPage struct {
	Items           []*User `json:"items"`
	Total           int64   `json:"total"`
	Page            int     `json:"page"`
	PageSize        int     `json:"page_size"`
	HasNextPage     bool    `json:"has_next_page"`
	HasPreviousPage bool    `json:"has_previous_page"`
}

// NewUserPage assembles the envelope and derives the navigation flags.
func NewUserPage(items []*User, total int64, page, pageSize int) *UserPage {
	return &UserPage{
		Items:           items,
		Total:           total,
		Page:            page,
		PageSize:        pageSize,
		HasNextPage:     int64(page*pageSize) < total,
		HasPreviousPage: page > 1,
	}
}
