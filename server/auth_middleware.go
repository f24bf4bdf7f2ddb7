package server

import (
	"context"
	"net/http"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyIdentity stores the authenticated hub user name
const ContextKeyIdentity ContextKey = "identity"

// identityFromContext returns the user set by RequireAPIIdentity.
func identityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(ContextKeyIdentity).(string)
	return identity
}

// RequireAPIIdentity is middleware for REST routes. It accepts a hub access
// token as a bearer token, or the hub session cookie.
func (s *Server) RequireAPIIdentity() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var identity string
			if raw := bearerToken(r); raw != "" {
				claims, err := s.auth.Identify(raw, "")
				if err != nil {
					writeJSONError(w, "invalid_token", err.Error(), http.StatusUnauthorized)
					return
				}
				identity = claims.Subject
			} else if outcome := s.gate.Authenticate(r); outcome.Authenticated {
				identity = outcome.Username
			} else {
				writeJSONError(w, "invalid_token", "authentication required", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireSelfOrAdmin limits a /{name} route to that user and to admins.
func (s *Server) RequireSelfOrAdmin() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identity := identityFromContext(r.Context())
			if identity == "" || (identity != r.PathValue("name") && !s.auth.IsAdmin(identity)) {
				writeJSONError(w, "access_denied", identity+" may not manage "+r.PathValue("name"), http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
}
