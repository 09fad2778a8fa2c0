package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testUser() *User {
	return &User{
		ID:       42,
		Name:     "Ada",
		Username: "ada",
		Email:    "ada@example.com",
		Role:     RoleOwner,
		IsActive: true,
	}
}

func TestTokenCodecAccessRoundTrip(t *testing.T) {
	codec, err := NewTokenCodec("test-secret")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, expiresAt, err := codec.SignAccess(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}

	claims, err := codec.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.UserID() != 42 {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != RoleOwner {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
	if claims.Username != "ada" || claims.Email != "ada@example.com" {
		t.Fatalf("identity claims not preserved: %+v", claims)
	}
}

func TestTokenCodecRejectsWrongTokenType(t *testing.T) {
	codec, err := NewTokenCodec("test-secret")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	refresh, _, err := codec.SignRefresh(42, time.Hour)
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}
	if _, err := codec.VerifyAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access verification accepted a refresh token: %v", err)
	}

	access, _, err := codec.SignAccess(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if _, _, err := codec.VerifyRefresh(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh verification accepted an access token: %v", err)
	}
}

func TestTokenCodecRejectsTamperedToken(t *testing.T) {
	codec, err := NewTokenCodec("test-secret")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	token, _, err := codec.SignAccess(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := codec.VerifyAccess(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token was accepted: %v", err)
	}
}

func TestTokenCodecRejectsForeignSecret(t *testing.T) {
	signer, err := NewTokenCodec("secret-a")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	verifier, err := NewTokenCodec("secret-b")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	token, _, err := signer.SignAccess(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if _, err := verifier.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with a foreign secret was accepted: %v", err)
	}
}

func TestTokenCodecRejectsExpiredToken(t *testing.T) {
	codec, err := NewTokenCodec("test-secret")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	base := time.Now()
	codec.now = func() time.Time { return base }

	token, _, err := codec.SignAccess(testUser(), time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if _, err := codec.VerifyAccess(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	codec.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := codec.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token was accepted: %v", err)
	}
}

func TestNewTokenCodecRequiresSecret(t *testing.T) {
	if _, err := NewTokenCodec(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
