package proxy

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/zonegate/zonegate/internal/authz"
	"github.com/zonegate/zonegate/internal/metrics"
	"github.com/zonegate/zonegate/internal/middleware"
)

// NewRouter creates a chi router for the record API. Every route runs the
// authorization middleware with ParseRequest mapping the HTTP surface to the
// DNS operation being attempted.
func NewRouter(handler *Handler, svc *authz.Service, logger *slog.Logger, opts authz.MiddlewareOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(authz.Middleware(svc, ParseRequest, opts))

	r.Get("/records/{hostname}", handler.HandleListRecords)
	r.Post("/records/{hostname}", handler.HandleCreateRecord)
	r.Put("/records/{hostname}", handler.HandleUpdateRecord)
	r.Delete("/records/{hostname}", handler.HandleDeleteRecord)

	return r
}
