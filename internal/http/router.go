// Package httpapi assembles the HTTP surface: middleware chain, module
// handlers, health, and metrics. Handlers stay thin; business logic lives in
// the services.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workpermit/internal/platform/metrics"
	"workpermit/internal/platform/middleware"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// Deps are the router's wiring inputs.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.ActorValidator

	Quota      Registrar
	Deployment Registrar
	Permit     Registrar
	Runaway    Registrar
}

// NewRouter wires all endpoints behind the shared middleware chain. Every
// core route requires an authenticated actor; health and metrics do not.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireActor(deps.Validator, deps.Logger))

		deps.Quota.Register(r)
		deps.Deployment.Register(r)
		deps.Permit.Register(r)
		deps.Runaway.Register(r)
	})

	return r
}
