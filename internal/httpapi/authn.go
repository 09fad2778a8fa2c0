package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pawbase.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/auth/register",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// routePolicy restricts a path prefix to a set of roles. An empty role set
// means any authenticated principal may pass.
type routePolicy struct {
	prefix string
	roles  []auth.Role
}

// routePolicies is checked in order; the first matching prefix wins.
var routePolicies = []routePolicy{
	{prefix: "/v1/users", roles: []auth.Role{auth.RoleAdministrator}},
	{prefix: "/v1/auth/", roles: nil},
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.auth.Authenticate(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		if err := checkRoutePolicy(r.URL.Path, claims.Role); err != nil {
			writeError(w, r, http.StatusForbidden, "insufficient role")
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func checkRoutePolicy(path string, role auth.Role) error {
	for _, p := range routePolicies {
		if !strings.HasPrefix(path, p.prefix) {
			continue
		}
		if len(p.roles) == 0 {
			return nil
		}
		for _, allowed := range p.roles {
			if role == allowed {
				return nil
			}
		}
		return auth.ErrForbidden
	}
	return nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
