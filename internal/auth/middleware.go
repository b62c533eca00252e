package auth

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/model"
)

// Middleware resolves the caller identity and attaches the principal to the
// request context. Downstream handlers read it with PrincipalFrom.
func Middleware(resolver *Resolver, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := ExtractUserID(r)
			if err != nil {
				if errors.Is(err, ErrMalformedUserID) {
					respond.WriteError(w, http.StatusBadRequest, "Invalid User ID.")
					return
				}
				respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
				return
			}

			p, err := resolver.Resolve(r.Context(), id)
			if err != nil {
				switch {
				case errors.Is(err, ErrMalformedUserID):
					respond.WriteError(w, http.StatusBadRequest, "Invalid User ID.")
				case errors.Is(err, model.ErrUnauthenticated):
					respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Unknown User ID")
				default:
					log.Error().Stack().Err(err).Str("user_id", id).Msg("principal lookup failed")
					respond.WriteError(w, http.StatusInternalServerError, "Internal server error")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin wraps a handler and rejects principals without the admin role.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
			return
		}
		if p.Role != model.RoleAdmin {
			respond.WriteError(w, http.StatusForbidden, "Forbidden: admin role required")
			return
		}
		next.ServeHTTP(w, r)
	}
}
