package httpapi

import (
	"net/http"
	"testing"

	"pawbase.org/internal/auth"
)

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]struct {
		header  string
		want    string
		wantErr bool
	}{
		"valid":            {header: "Bearer abc123", want: "abc123"},
		"case insensitive": {header: "bearer abc123", want: "abc123"},
		"missing":          {header: "", wantErr: true},
		"wrong scheme":     {header: "Basic abc123", wantErr: true},
		"empty token":      {header: "Bearer   ", wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := extractBearerToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCheckRoutePolicy(t *testing.T) {
	if err := checkRoutePolicy("/v1/users", auth.RoleOwner); err == nil {
		t.Fatal("owner allowed into admin surface")
	}
	if err := checkRoutePolicy("/v1/users/7", auth.RoleOwner); err == nil {
		t.Fatal("owner allowed into admin resource")
	}
	if err := checkRoutePolicy("/v1/users", auth.RoleAdministrator); err != nil {
		t.Fatalf("administrator rejected: %v", err)
	}
	if err := checkRoutePolicy("/v1/auth/me", auth.RoleOwner); err != nil {
		t.Fatalf("authenticated owner rejected from own profile: %v", err)
	}
}

func TestGuardMatrix(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("root@example.com", "masterkey")

	resp := c.do(http.MethodPost, "/v1/auth/register", map[string]string{
		"username": "ada", "email": "ada@example.com", "password": "s3cret",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	owner := c.login("ada@example.com", "s3cret")

	cases := map[string]struct {
		token string
		want  int
	}{
		"no token":      {token: "", want: http.StatusUnauthorized},
		"garbage token": {token: "not-a-jwt", want: http.StatusUnauthorized},
		"owner token":   {token: owner.AccessToken, want: http.StatusForbidden},
		"admin token":   {token: admin.AccessToken, want: http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var headers map[string]string
			if tc.token != "" {
				headers = bearerHeaders(tc.token)
			}
			resp := c.do(http.MethodGet, "/v1/users", nil, headers)
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestRefreshTokenRejectedAsBearer(t *testing.T) {
	c := newTestAPI(t)
	pair := c.login("root@example.com", "masterkey")

	resp := c.do(http.MethodGet, "/v1/auth/me", nil, bearerHeaders(pair.RefreshToken))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh token accepted as bearer: %d", resp.StatusCode)
	}
}
