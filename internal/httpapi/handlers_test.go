package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"pawbase.org/internal/auth"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T, opts ...auth.ServiceOption) *apiClient {
	t.Helper()

	store := auth.NewInMemoryStore()
	codec, err := auth.NewTokenCodec("test-secret")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	opts = append([]auth.ServiceOption{auth.WithBcryptCost(bcrypt.MinCost)}, opts...)
	svc, err := auth.NewService(store, codec, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.EnsureAdmin(context.Background(), "root@example.com", "masterkey"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}

	api := New(svc, ReadyProbe{}, "test", WithRateLimit(100, 100))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decode body %q: %v", data, err)
	}
}

func (c *apiClient) login(email, password string) auth.TokenPair {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var pair auth.TokenPair
	decodeBody(c.t, resp, &pair)
	return pair
}

func bearerHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthEndpoints(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.do(http.MethodGet, path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestRequestIDEchoedInResponse(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/healthz", nil, map[string]string{"X-Request-Id": "req-abc"})
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "req-abc" {
		t.Fatalf("expected request id echo, got %q", got)
	}

	resp2 := c.do(http.MethodGet, "/healthz", nil, nil)
	defer resp2.Body.Close()
	if resp2.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected generated request id")
	}
}

func TestLoginRefreshRotation(t *testing.T) {
	c := newTestAPI(t)

	pair := c.login("root@example.com", "masterkey")
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected full token pair")
	}

	resp := c.do(http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	var rotated auth.TokenPair
	decodeBody(t, resp, &rotated)

	// The exchanged token is dead.
	resp = c.do(http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale refresh: expected 401, got %d", resp.StatusCode)
	}

	resp = c.do(http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": rotated.RefreshToken,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotated refresh: expected 200, got %d", resp.StatusCode)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	c := newTestAPI(t)

	for name, body := range map[string]map[string]string{
		"wrong password": {"email": "root@example.com", "password": "nope"},
		"unknown email":  {"email": "ghost@example.com", "password": "masterkey"},
	} {
		resp := c.do(http.MethodPost, "/v1/auth/login", body, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, resp.StatusCode)
		}
		var payload map[string]any
		decodeBody(t, resp, &payload)
		if payload["error"] != "invalid credentials" {
			t.Fatalf("%s: expected uniform message, got %v", name, payload["error"])
		}
	}
}

func TestRegisterAndLogin(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodPost, "/v1/auth/register", map[string]string{
		"username": "ada", "email": "ada@example.com", "password": "s3cret", "name": "Ada",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	var created auth.User
	decodeBody(t, resp, &created)
	if created.Role != auth.RoleOwner {
		t.Fatalf("expected owner role, got %s", created.Role)
	}

	// Duplicate username conflicts.
	resp = c.do(http.MethodPost, "/v1/auth/register", map[string]string{
		"username": "ada", "email": "other@example.com", "password": "x",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.StatusCode)
	}

	c.login("ada@example.com", "s3cret")
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	c := newTestAPI(t)
	pair := c.login("root@example.com", "masterkey")

	resp := c.do(http.MethodPost, "/v1/auth/logout", nil, bearerHeaders(pair.AccessToken))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", resp.StatusCode)
	}

	resp = c.do(http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestMeReturnsProfile(t *testing.T) {
	c := newTestAPI(t)
	pair := c.login("root@example.com", "masterkey")

	resp := c.do(http.MethodGet, "/v1/auth/me", nil, bearerHeaders(pair.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}
	var me auth.User
	decodeBody(t, resp, &me)
	if me.Email != "root@example.com" || me.Role != auth.RoleAdministrator {
		t.Fatalf("unexpected profile: %+v", me)
	}
}

func TestChangePasswordFlow(t *testing.T) {
	c := newTestAPI(t)
	pair := c.login("root@example.com", "masterkey")

	resp := c.do(http.MethodPut, "/v1/auth/password", map[string]string{
		"old_password": "wrong", "new_password": "next",
	}, bearerHeaders(pair.AccessToken))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong old password: expected 401, got %d", resp.StatusCode)
	}

	resp = c.do(http.MethodPut, "/v1/auth/password", map[string]string{
		"old_password": "masterkey", "new_password": "nextkey",
	}, bearerHeaders(pair.AccessToken))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("change password: expected 204, got %d", resp.StatusCode)
	}

	c.login("root@example.com", "nextkey")
}

func TestStaticAdminVariant(t *testing.T) {
	c := newTestAPI(t, auth.WithStaticAdmin("static@example.com", "staticpass"))

	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "static@example.com", "password": "staticpass",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("static login: expected 200, got %d", resp.StatusCode)
	}
	var pair auth.TokenPair
	decodeBody(t, resp, &pair)
	if pair.AccessToken == "" || pair.RefreshToken != "" {
		t.Fatalf("expected access-only pair, got %+v", pair)
	}

	// The static principal resolves through /v1/auth/me without a store row.
	resp = c.do(http.MethodGet, "/v1/auth/me", nil, bearerHeaders(pair.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("static me: expected 200, got %d", resp.StatusCode)
	}
	var me map[string]any
	decodeBody(t, resp, &me)
	if me["role"] != string(auth.RoleAdministrator) {
		t.Fatalf("unexpected role: %v", me["role"])
	}
}
