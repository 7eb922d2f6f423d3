package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recast/recast/internal/handler"
	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/middleware"
)

// Routes bundles the handlers mounted by NewRouter.
type Routes struct {
	Index       *handler.Handler
	Health      *handler.HealthHandler
	Metrics     *handler.MetricsHandler
	Catalog     *handler.CatalogHandler
	Account     *handler.AccountHandler
	Content     *handler.ContentHandler
	Generations *handler.GenerationHandler
	Artifacts   *handler.ArtifactHandler
}

// RouterConfig holds the cross-cutting middleware settings.
type RouterConfig struct {
	Logger             *slog.Logger
	Recorder           metrics.Recorder
	IsDevelopment      bool
	AllowedOrigins     []string
	MaxRequestBodySize int64
	RateLimit          middleware.RateLimitConfig
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(routes Routes, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.AllowedOrigins

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger, cfg.Recorder))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(corsCfg))

	// Probes and metrics carry no account.
	r.Get("/healthz", routes.Health.Healthz)
	r.Get("/readyz", routes.Health.Readyz)
	r.Get("/metrics", routes.Metrics.Metrics)
	r.Get("/", routes.Index.Index)

	rateLimitCfg := cfg.RateLimit
	rateLimitCfg.Logger = cfg.Logger

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
		r.Use(middleware.Account)
		r.Use(middleware.RateLimitAccount(rateLimitCfg))

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/formats", routes.Catalog.Formats)
			r.Get("/tones", routes.Catalog.Tones)
			r.Get("/models", routes.Catalog.Models)
		})

		r.Get("/account", routes.Account.Get)
		r.Put("/account/plan", routes.Account.ChangePlan)

		r.Route("/content", func(r chi.Router) {
			r.Post("/", routes.Content.Create)
			r.Get("/{id}", routes.Content.Get)
			r.Post("/{id}/generations", routes.Generations.Generate)
		})

		r.Route("/artifacts", func(r chi.Router) {
			r.Get("/", routes.Artifacts.List)
			r.Get("/export", routes.Artifacts.ExportAll)
			r.Get("/{id}", routes.Artifacts.Get)
			r.Get("/{id}/export", routes.Artifacts.Export)
			r.Delete("/{id}", routes.Artifacts.Delete)
		})
	})

	r.NotFound(routes.Index.NotFound)
	r.MethodNotAllowed(routes.Index.MethodNotAllowed)

	return r
}
