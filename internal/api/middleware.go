/**
 * @description
 * This file contains the authentication and authorization middleware for the
 * HTTP router. The auth middleware validates the bearer session token and
 * resolves it to a live principal record; the capability middlewares gate
 * routes on the principal kind. All three are pure gates: they never mutate
 * state.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - internal/app, internal/domain: Session verification and the principal union.
 */

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/portalbank/payments-portal/internal/app"
	"github.com/portalbank/payments-portal/internal/domain"
)

// principalContextKey is a custom type for the context key to avoid collisions.
type principalContextKey string

const principalKey principalContextKey = "portalPrincipal"

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header, returning "" when the header is missing or malformed.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware validates the session token on each request and stores the
// resolved principal in the request context. Missing, malformed, expired or
// revoked tokens, and tokens whose principal no longer exists, are rejected
// with 401.
func AuthMiddleware(service *app.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "No token provided, access denied")
				return
			}

			principal, err := service.VerifySession(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Token is not valid")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCustomer admits only customer principals.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if principal.Kind != domain.KindCustomer {
			writeError(w, http.StatusForbidden, "Access denied. Customer access only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireEmployee admits only employee principals.
func RequireEmployee(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if principal.Kind != domain.KindEmployee {
			writeError(w, http.StatusForbidden, "Access denied. Employee role required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext retrieves the authenticated principal from the
// request context. Handlers should use this to get the acting identity.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(*domain.Principal)
	return principal, ok
}
