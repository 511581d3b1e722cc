// Package main is the entrypoint for the Hopline API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hopline/hopline/internal/ai"
	"github.com/hopline/hopline/internal/analytics"
	"github.com/hopline/hopline/internal/cache"
	"github.com/hopline/hopline/internal/config"
	"github.com/hopline/hopline/internal/geoip"
	"github.com/hopline/hopline/internal/handler"
	"github.com/hopline/hopline/internal/metadata"
	"github.com/hopline/hopline/internal/metrics"
	"github.com/hopline/hopline/internal/middleware"
	"github.com/hopline/hopline/internal/repository"
	"github.com/hopline/hopline/internal/server"
	"github.com/hopline/hopline/internal/service"
	"github.com/hopline/hopline/internal/sweeper"
	"github.com/hopline/hopline/internal/useragent"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cfg.CacheTTL())
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	// Enrichment clients. All of these are best effort; the core
	// shorten/redirect path works without them.
	aiClient := ai.NewClient(cfg.OllamaBaseURL, cfg.OllamaModel, repo, cfg.AnnotationTTL(), logger)
	fetcher := metadata.NewFetcher(cfg.MetadataFetchTimeout, cfg.MetadataMaxBodySize, logger)
	geoClient := geoip.NewClient(cfg.GeoIPBaseURL, logger)
	uaParser := useragent.NewParser()

	// Click tracker pipeline
	tracker := analytics.NewTracker(repo, uaParser, geoClient, logger, recorder)
	if cfg.TrackerWorkers > 0 {
		tracker.SetWorkers(cfg.TrackerWorkers)
	}
	tracker.SetQueueSize(cfg.TrackerQueueSize)
	go func() {
		if err := tracker.Run(ctx); err != nil {
			logger.Error("click tracker stopped", "error", err)
		}
	}()

	// Expired-mapping sweeper
	sweep := sweeper.New(repo, cfg.SweepInterval, logger)
	go func() {
		if err := sweep.Run(ctx); err != nil {
			logger.Error("sweeper stopped", "error", err)
		}
	}()

	// Core services
	shortener := service.NewShortener(repo, repo, cacheClient, fetcher, aiClient, cfg.BaseURL, logger, recorder)
	shortener.SetDispatcher(tracker)
	resolver := service.NewResolver(repo, cacheClient, logger, recorder)

	// Handlers
	urlHandler := handler.NewURLHandler(shortener, logger)
	redirectHandler := handler.NewRedirectHandler(resolver, tracker, logger)
	aiHandler := handler.NewAIHandler(aiClient, cfg.OllamaModel, logger)
	healthHandler := handler.NewHealthHandler(repo, cacheClient, aiClient)
	metricsHandler := handler.NewMetricsHandler(recorder)

	r := setupRouter(urlHandler, redirectHandler, aiHandler, healthHandler, metricsHandler, cacheClient, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)
	srv.OnShutdown("click tracker", tracker.Shutdown)
	srv.OnShutdown("sweeper", sweep.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
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

	logger := slog.New(h)
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

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	urlHandler *handler.URLHandler,
	redirectHandler *handler.RedirectHandler,
	aiHandler *handler.AIHandler,
	healthHandler *handler.HealthHandler,
	metricsHandler *handler.MetricsHandler,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.DefaultSecurityConfig()))

	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = origins
		r.Use(middleware.CORS(corsCfg))
	}

	// Operational endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

		r.Route("/urls", func(r chi.Router) {
			r.Post("/", urlHandler.Create)
			r.Post("/bulk", urlHandler.CreateBulk)
			r.Post("/bulk/csv", urlHandler.CreateBulkCSV)
			r.Get("/", urlHandler.List)
			r.Get("/{key}/stats", urlHandler.Stats)
			r.Get("/{key}/analytics", urlHandler.Analytics)
			r.Get("/{key}/qrcode", urlHandler.QRCode)
			r.Get("/{key}/preview", urlHandler.Preview)
			r.Get("/{key}/protected", urlHandler.Protection)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Post("/suggest-aliases", aiHandler.SuggestAliases)
			r.Post("/check-safety", aiHandler.CheckSafety)
			r.Get("/health", aiHandler.Health)
		})
	})

	// Redirect and unlock, per-IP rate limited
	rateLimit := middleware.RateLimit(cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitWindow(), logger)
	r.With(rateLimit).Get("/{key}", redirectHandler.Redirect)
	r.With(rateLimit).Post("/{key}/unlock", redirectHandler.Unlock)

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
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
