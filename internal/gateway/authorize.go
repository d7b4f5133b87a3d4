package gateway

import (
	"net/http"

	"github.com/securevault/securevault/internal/domain"
)

// RequireRole wraps a handler and admits only requests whose verified role
// claim is one of the allowed roles. It must run after the JWT filter,
// which is the only writer of the claims context value.
func RequireRole(next http.Handler, roles ...domain.Role) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeGatewayError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			writeGatewayError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
