package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/securevault/securevault/internal/application"
)

// Handler is the HTTP adapter entrypoint for credential use-cases.
// Keeping only the application dependency here preserves clean adapter
// boundaries.
type Handler struct {
	service   *application.Service
	readiness func(context.Context) error
}

// NewHandler constructs an HTTP handler bound to the application service.
// readiness probes downstream dependencies and may be nil.
func NewHandler(service *application.Service, readiness func(context.Context) error) *Handler {
	return &Handler{service: service, readiness: readiness}
}

// NewRouter registers the credential routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior
// across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/.well-known/jwks.json", handler.jwks)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/refresh", handler.refresh)
		r.Post("/2fa/verify-login", handler.totpVerifyLogin)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/logout", handler.logout)
			r.Post("/2fa/setup", handler.totpSetup)
			r.Post("/2fa/verify", handler.totpConfirm)
			r.Post("/2fa/disable", handler.totpDisable)
		})
	})

	return r
}
