// Package main is the entrypoint for the Recast API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/recast/recast/internal/artifact"
	"github.com/recast/recast/internal/cache"
	"github.com/recast/recast/internal/config"
	"github.com/recast/recast/internal/content"
	"github.com/recast/recast/internal/events"
	"github.com/recast/recast/internal/handler"
	"github.com/recast/recast/internal/ledger"
	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/middleware"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/provider"
	"github.com/recast/recast/internal/repository"
	"github.com/recast/recast/internal/server"
	"github.com/recast/recast/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run wires every component from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize database
	var repo *repository.Repository
	if cfg.NeedsPostgres() {
		r, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{MaxConns: cfg.DatabaseMaxConns})
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return errors.New("database unavailable")
		}
		repo = r
		defer repo.Close()
		logger.Info("connected to database")
	}

	// Initialize cache
	var cacheClient *cache.Cache
	if cfg.NeedsRedis() {
		c, err := cache.New(ctx, cfg.RedisURL, cache.PoolOptions{PoolSize: cfg.RedisPoolSize})
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return errors.New("redis unavailable")
		}
		cacheClient = c
		defer cacheClient.Close()
		logger.Info("connected to Redis")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	// Storage and ledger backends
	credits := selectLedger(cfg, repo, cacheClient)
	contents, artifacts := selectStores(cfg, repo, cacheClient, logger)

	// Model provider
	gateway := provider.NewOpenAICompat(provider.Config{
		BaseURL:         cfg.ProviderBaseURL,
		APIKey:          cfg.ProviderAPIKey,
		Timeout:         cfg.ProviderTimeout,
		MaxOutputTokens: cfg.ProviderMaxOutputTokens,
		Temperature:     cfg.ProviderTemperature,
		Referer:         cfg.ProviderReferer,
		Title:           cfg.ProviderTitle,
		MaxConcurrency:  cfg.ProviderMaxConcurrency,
	})

	// Completion events
	var sink events.Sink = events.Discard{}
	var publisher *events.Publisher
	if cfg.EventsEnabled {
		publisher = events.NewPublisher(cacheClient.Client(), logger, recorder)
		sink = publisher
	}

	// Initialize services
	contentService := service.NewContentService(contents)
	historyService := service.NewHistoryService(artifacts)
	accountService := service.NewAccountService(credits, model.Plan(cfg.DefaultPlan))
	genCfg := service.DefaultGenerationConfig()
	genCfg.RetryBackoff = cfg.RetryBackoff
	generationService := service.NewGenerationService(
		credits,
		gateway,
		artifacts,
		sink,
		recorder,
		logger,
		genCfg,
	)

	// Initialize handlers
	healthDeps := []handler.Dependency{{Name: "postgres"}, {Name: "redis"}}
	if repo != nil {
		healthDeps[0].Checker = repo
	}
	if cacheClient != nil {
		healthDeps[1].Checker = cacheClient
	}

	routes := server.Routes{
		Index:       handler.New(),
		Health:      handler.NewHealthHandler(healthDeps...),
		Metrics:     handler.NewMetricsHandler(registry, nil),
		Catalog:     handler.NewCatalogHandler(),
		Account:     handler.NewAccountHandler(accountService, logger),
		Content:     handler.NewContentHandler(contentService, logger),
		Generations: handler.NewGenerationHandler(contentService, accountService, generationService, logger),
		Artifacts:   handler.NewArtifactHandler(historyService, logger),
	}

	rateLimit := middleware.RateLimitConfig{
		Logger:            logger,
		Enabled:           cfg.RateLimitEnabled,
		RequestsPerMinute: cfg.RateLimitRPM,
		Burst:             cfg.RateLimitBurst,
	}
	if cacheClient != nil {
		rateLimit.Limiter = cacheClient
	}

	// Setup router
	r := server.NewRouter(routes, server.RouterConfig{
		Logger:             logger,
		Recorder:           recorder,
		IsDevelopment:      cfg.IsDevelopment(),
		AllowedOrigins:     cfg.GetCORSAllowedOrigins(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RateLimit:          rateLimit,
	})

	// Create and run server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// In-flight events drain before the deferred Redis close.
	if publisher != nil {
		srv.OnShutdown("publisher", func(context.Context) error {
			publisher.Wait()
			return nil
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage_backend", cfg.StorageBackend,
		"ledger_backend", cfg.LedgerBackend,
		"provider", redactURL(cfg.ProviderBaseURL),
	)

	return srv.Run(ctx)
}

// selectLedger returns the credit ledger named by LEDGER_BACKEND.
func selectLedger(cfg *config.Config, repo *repository.Repository, cacheClient *cache.Cache) ledger.Ledger {
	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		return repo.Credits()
	case config.BackendRedis:
		return cacheClient.Credits()
	default:
		return ledger.NewMemory()
	}
}

// selectStores returns the content and artifact stores named by STORAGE_BACKEND.
// Artifact reads go through the Redis cache when one is configured.
func selectStores(cfg *config.Config, repo *repository.Repository, cacheClient *cache.Cache, logger *slog.Logger) (content.Store, artifact.Store) {
	var (
		contents  content.Store
		artifacts artifact.Store
	)
	if cfg.StorageBackend == config.BackendPostgres {
		contents = repo.Contents()
		artifacts = repo.Artifacts()
	} else {
		contents = content.NewMemory()
		artifacts = artifact.NewMemory()
	}

	if cacheClient != nil {
		artifacts = artifact.NewCachedStore(artifacts, cacheClient, logger)
	}
	return contents, artifacts
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "recast")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
