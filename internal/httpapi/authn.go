package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"irisfleet.io/internal/auth"
)

const authHeader = "Authorization"

// extractBearer performs the strict two-part split. The scheme is
// case-sensitive: "bearer" is rejected.
func extractBearer(header string) (string, string) {
	if strings.TrimSpace(header) == "" {
		return "", "No authorization header provided"
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

// Authenticate verifies the access token, loads the caller's current roles
// and attaches the identity to the request context. Failures short-circuit
// with 401.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, failMsg := extractBearer(r.Header.Get(authHeader))
		if failMsg != "" {
			writeError(w, http.StatusUnauthorized, failMsg)
			return
		}

		ident, err := a.authSvc.IdentityFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, authFailureMessage(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), ident)))
	})
}

// OptionalAuth runs the same pipeline but never rejects: an absent or
// invalid token just leaves the request anonymous.
func (a *API) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, failMsg := extractBearer(r.Header.Get(authHeader)); failMsg == "" {
			if ident, err := a.authSvc.IdentityFromToken(r.Context(), token); err == nil {
				r = r.WithContext(auth.ContextWithIdentity(r.Context(), ident))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles gates a handler on role membership. Authentication must have
// run first; a missing identity is a 401, an empty intersection a 403.
func RequireRoles(next http.Handler, roles ...auth.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !ident.HasAnyRole(roles...) {
			names := make([]string, len(roles))
			for i, role := range roles {
				names[i] = string(role)
			}
			writeError(w, http.StatusForbidden,
				fmt.Sprintf("Access denied. Required roles: %s", strings.Join(names, ", ")))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin is shorthand for the admin-only gates.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRoles(next, auth.RoleAdmin)
}

// authFailureMessage maps verification failures onto the middleware's fixed
// client-facing vocabulary.
func authFailureMessage(err error) string {
	var terr *auth.TokenError
	if errors.As(err, &terr) {
		switch terr.Kind {
		case auth.TokenExpired:
			return "Token has expired"
		case auth.TokenMalformed:
			return "Invalid token"
		default:
			return "Authentication failed"
		}
	}
	return "Authentication failed"
}
