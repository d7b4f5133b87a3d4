package http

import (
	"context"
	"net/http"

	"github.com/securevault/securevault/internal/ports"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) jwks(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.PublicJWKs()
	if err != nil {
		writeMappedError(r.Context(), w, "jwks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// authMiddleware gates the protected routes. It verifies the signature and
// consults the denylist, so a logged-out access token is rejected here even
// though it has not expired yet.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "auth_middleware")
			return
		}

		claims, err := h.service.ValidateAccess(r.Context(), raw)
		if err != nil {
			writeMappedError(r.Context(), w, "auth_middleware", err)
			return
		}

		ctx := contextWithToken(r.Context(), raw, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func contextWithToken(ctx context.Context, token string, claims ports.AccessClaims) context.Context {
	ctx = context.WithValue(ctx, ctxKeyTokenRaw, token)
	ctx = context.WithValue(ctx, ctxKeyClaims, claims)
	return ctx
}

func claimsFromContext(ctx context.Context) (ports.AccessClaims, bool) {
	v := ctx.Value(ctxKeyClaims)
	claims, ok := v.(ports.AccessClaims)
	return claims, ok
}

func tokenFromContext(r *http.Request) (string, bool) {
	v := r.Context().Value(ctxKeyTokenRaw)
	token, ok := v.(string)
	return token, ok
}
