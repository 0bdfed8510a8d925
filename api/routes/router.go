package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ltv-backend/api/controllers"
	"github.com/angelmondragon/ltv-backend/api/middleware"
	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Dashboard controllers.DashboardService
	Reloader  controllers.SnapshotReloader
	Runs      controllers.RunJournal
	// Ready is checked by /health/ready; nil entries report as disabled.
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
	// RateStore backs reload throttling; nil falls back to per-process buckets.
	RateStore middleware.RateStore
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Dashboard.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, deps.Ready))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.Ping())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", controllers.Dashboard(deps.Dashboard, logg))
			r.Get("/filters", controllers.DashboardFilters(deps.Dashboard))
			reloadLimit := middleware.NewRateLimitPolicy("dashboard-reload", cfg.Dashboard.ReloadWindow, cfg.Dashboard.ReloadLimit)
			r.With(middleware.RateLimit(reloadLimit, deps.RateStore, logg)).
				Post("/reload", controllers.DashboardReload(deps.Reloader, deps.Dashboard, logg))
		})
		if deps.Runs != nil {
			r.Route("/pipeline/runs", func(r chi.Router) {
				r.Get("/", controllers.PipelineRuns(deps.Runs, logg))
				r.Get("/{runId}", controllers.PipelineRunDetail(deps.Runs, logg))
			})
		}
	})

	return r
}
