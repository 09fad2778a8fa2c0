package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "pawbase"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AccessClaims are the stateless claims carried by a bearer access token.
type AccessClaims struct {
	Role     Role   `json:"role"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the numeric principal id embedded in Subject, or 0 when the
// claims belong to the static administrator (no store row).
func (c *AccessClaims) UserID() int64 {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// RefreshClaims carry only the principal id; the persisted credential row is
// the source of truth for whether they are still honored.
type RefreshClaims struct {
	Type string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies compact bearer tokens with a process-wide
// HS256 secret loaded once at startup.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec builds a codec around the shared signing secret.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	return &TokenCodec{secret: []byte(secret), now: time.Now}, nil
}

// SignAccess issues a short-lived access token for the given user.
func (c *TokenCodec) SignAccess(u *User, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be greater than zero")
	}
	now := c.now().UTC()
	exp := now.Add(ttl)
	claims := AccessClaims{
		Role:     u.Role,
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
		Type:     tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// SignRefresh issues a long-lived refresh token carrying only the user id.
// The signed string doubles as the persisted RefreshCredential value.
func (c *TokenCodec) SignRefresh(userID int64, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be greater than zero")
	}
	now := c.now().UTC()
	exp := now.Add(ttl)
	claims := RefreshClaims{
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess validates signature, expiry, issuer, and token type. Every
// failure collapses to ErrInvalidToken; callers never learn which check
// tripped.
func (c *TokenCodec) VerifyAccess(token string) (*AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, c.keyfunc,
		jwt.WithIssuer(issuer), jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.Type != tokenTypeAccess {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns the embedded user id.
func (c *TokenCodec) VerifyRefresh(token string) (*RefreshClaims, int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, 0, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &RefreshClaims{}, c.keyfunc,
		jwt.WithIssuer(issuer), jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, 0, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*RefreshClaims)
	if !ok || !parsed.Valid || claims.Type != tokenTypeRefresh {
		return nil, 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, 0, ErrInvalidToken
	}
	return claims, userID, nil
}

func (c *TokenCodec) keyfunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, ErrInvalidToken
	}
	return c.secret, nil
}
