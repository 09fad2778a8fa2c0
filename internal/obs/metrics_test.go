package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                         "/",
		"/metrics":                 "/metrics",
		"/v1/users/42":             "/v1/users/:id",
		"/v1/users/42/extra":       "/v1/users/42/extra",
		"/v1/users":                "/v1/users",
		"/v1/auth/login":           "/v1/auth/login",
		"/v1/auth/login?foo=bar":   "/v1/auth/login",
		"/v1/users/7?is_active=on": "/v1/users/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
