package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/castingly/castingly-backend/api/controllers"
	"github.com/castingly/castingly-backend/api/middleware"
	"github.com/castingly/castingly-backend/internal/backfill"
	"github.com/castingly/castingly-backend/internal/media"
	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/logger"
	"github.com/castingly/castingly-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Resolver       middleware.PrincipalResolver
	Limiter        *redis.Client
	Media          media.Service
	Backfill       backfill.Service
	BackfillRuns   controllers.BackfillRunLister
	StorageForKey  controllers.StorageForKey
	APIKeys        middleware.APIKeyVerifier
	Refresher      controllers.SessionRefresher
	PrincipalCache controllers.PrincipalInvalidator
	Ready          map[string]controllers.Pinger
	Metrics        prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.Auth(deps.Resolver, logg)).Get("/session", controllers.AuthSession(logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Refresher, logg))
		r.Post("/logout", controllers.AuthLogout(deps.PrincipalCache, logg))
	})

	r.Route("/api/media", func(r chi.Router) {
		r.With(middleware.OptionalAuth(deps.Resolver, logg)).Get("/proxy/{fileId}", controllers.MediaProxy(deps.Media, logg))

		r.Route("/actor/{actorId}", func(r chi.Router) {
			r.Use(middleware.Auth(deps.Resolver, logg))
			r.Get("/", controllers.MediaList(deps.Media, logg))

			upload := controllers.MediaUpload(deps.Media, controllers.UploadLimits{
				MaxMemory: cfg.Media.MultipartMemory(),
				MaxBody:   media.PolicyFromConfig(cfg.Media).LargestMaxBytes(),
			}, logg)
			if deps.Limiter != nil {
				r.With(middleware.RateLimit("upload", deps.Limiter, cfg.Media.UploadRateLimit, cfg.Media.UploadRateWindow, logg)).Post("/upload", upload)
			} else {
				r.Post("/upload", upload)
			}
		})
	})

	r.Route("/api/admin/media/backfill", func(r chi.Router) {
		// Run history is operator-only; media API keys may only start runs.
		r.With(middleware.AdminGuard(cfg.Backfill.AdminSecret, deps.Resolver, deps.APIKeys, logg)).
			Post("/", controllers.AdminMediaBackfill(deps.Backfill, cfg.Backfill.DefaultMax, deps.StorageForKey, logg))
		if deps.BackfillRuns != nil {
			r.With(middleware.AdminGuard(cfg.Backfill.AdminSecret, deps.Resolver, nil, logg)).
				Get("/runs", controllers.AdminBackfillRuns(deps.BackfillRuns, logg))
		}
	})

	return r
}
