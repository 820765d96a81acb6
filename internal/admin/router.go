package admin

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/zonegate/zonegate/internal/middleware"
)

// NewRouter creates the admin router with API routes only
func (h *Handler) NewRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(h.logger))
	r.Use(chimiddleware.Recoverer)

	// Public endpoints (no auth)
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	// Admin API (admin key auth)
	r.Route("/api", func(r chi.Router) {
		r.Use(h.AdminKeyMiddleware)

		// Log level management
		r.Post("/loglevel", h.HandleSetLogLevel)

		// Accounts
		r.Post("/accounts", h.HandleCreateAccount)
		r.Get("/accounts/{name}", h.HandleGetAccount)

		// Realm lifecycle
		r.Get("/realms", h.HandleListRealms)
		r.Post("/realms", h.HandleCreateRealm)
		r.Get("/realms/{id}", h.HandleGetRealm)
		r.Post("/realms/{id}/approve", h.HandleApproveRealm)
		r.Post("/realms/{id}/reject", h.HandleRejectRealm)
		r.Post("/realms/{id}/revoke", h.HandleRevokeRealm)
		r.Get("/realms/{id}/tokens", h.HandleListTokens)

		// Token lifecycle
		r.Post("/tokens", h.HandleCreateToken)
		r.Get("/tokens/{id}", h.HandleGetToken)
		r.Put("/tokens/{id}", h.HandleUpdateToken)
		r.Post("/tokens/{id}/revoke", h.HandleRevokeToken)
		r.Post("/tokens/{id}/rotate", h.HandleRotateToken)
	})

	return r
}
