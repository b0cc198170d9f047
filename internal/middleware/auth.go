package middleware

import (
	"net/http"
	"strings"

	"github.com/baliwag-egov/civreg/internal/auth"
)

// TokenValidator validates a bearer token and returns its claims.
// Satisfied by *auth.JWTService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// Auth is a middleware that extracts and validates the Authorization bearer
// token, storing the resulting Identity in the request context. Requests
// without a token pass through unauthenticated; handlers decide whether an
// identity is required. Requests with a malformed or invalid token are
// rejected here so a bad token can never be mistaken for anonymity.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "malformed Authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil || claims.Type != auth.TokenTypeAccess {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			role := claims.Role
			if !role.Valid() {
				role = auth.RoleUser
			}

			ctx := SetIdentity(r.Context(), Identity{
				UserID: claims.Subject,
				Role:   role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
