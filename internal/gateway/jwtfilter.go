package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/securevault/securevault/internal/ports"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

type gatewayCtxKey string

const ctxKeyGatewayClaims gatewayCtxKey = "gateway_claims"

// publicPaths bypass signature verification: they are exactly the endpoints
// a caller reaches before holding any token.
var publicPaths = map[string]struct{}{
	"/api/auth/login":            {},
	"/api/auth/register":         {},
	"/api/auth/refresh":          {},
	"/api/auth/2fa/verify-login": {},
}

// JWTFilter is the second filter stage: stateless signature verification
// plus trusted identity-header injection. It never consults the denylist;
// immediate revocation is checked by the components that need it.
type JWTFilter struct {
	verifier ports.TokenVerifier
}

func NewJWTFilter(verifier ports.TokenVerifier) *JWTFilter {
	return &JWTFilter{verifier: verifier}
}

func (f *JWTFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Incoming identity headers are stripped unconditionally, on public
		// paths too. Only the gateway may assert identity to upstreams.
		r.Header.Del(headerUserID)
		r.Header.Del(headerUserRole)

		if _, ok := publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeGatewayError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		claims, err := f.verifier.Verify(raw)
		if err != nil {
			// One generic body for every failure mode; the caller learns
			// nothing about why the token was rejected.
			writeGatewayError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		r.Header.Set(headerUserID, claims.UserID.String())
		r.Header.Set(headerUserRole, string(claims.Role))

		ctx := context.WithValue(r.Context(), ctxKeyGatewayClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext exposes the verified claims to downstream filters such
// as RequireRole.
func ClaimsFromContext(ctx context.Context) (ports.AccessClaims, bool) {
	v := ctx.Value(ctxKeyGatewayClaims)
	claims, ok := v.(ports.AccessClaims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
