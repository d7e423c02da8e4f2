// Package main is the entrypoint for the Aroosi API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aroosi/aroosi-api/internal/analytics"
	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/cache"
	"github.com/aroosi/aroosi-api/internal/config"
	"github.com/aroosi/aroosi-api/internal/handler"
	"github.com/aroosi/aroosi-api/internal/media"
	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/middleware"
	"github.com/aroosi/aroosi-api/internal/push"
	"github.com/aroosi/aroosi-api/internal/realtime"
	"github.com/aroosi/aroosi-api/internal/repository"
	"github.com/aroosi/aroosi-api/internal/scheduler"
	"github.com/aroosi/aroosi-api/internal/server"
	"github.com/aroosi/aroosi-api/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const ipLimiterCleanupInterval = time.Minute

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Apply schema migrations
	if cfg.MigrateOnStart {
		v, err := repository.Migrate(cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to apply migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("migrations applied", "version", v)
	}

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.Options{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
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
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{PoolSize: cfg.RedisPoolSize})
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

	recorder := metrics.NewPrometheus()
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	hub := realtime.NewHub(cacheClient.Client(), cacheClient, logger, recorder)
	pushRepo := push.NewRepository(repo.Pool())

	// Initialize services
	notificationService := service.NewNotificationService(pushRepo, logger)
	usageService := service.NewUsageService(repo, repo, recorder)
	authService := service.NewAuthService(repo, cacheClient, cacheClient, hub, issuer, cfg.RefreshTokenTTL, logger)

	profileDeps := service.ProfileDeps{
		Cache:   cacheClient,
		Images:  media.NewValidator(cfg.GetMediaAllowedHosts()),
		Metrics: recorder,
		Logger:  logger,
	}
	if cfg.AnalyticsEnabled {
		profileDeps.Views = analytics.NewPublisher(cacheClient.Client(), logger, recorder)
	}
	profileService := service.NewProfileService(repo, repo, usageService, profileDeps)

	interestService := service.NewInterestService(repo, repo, usageService, notificationService, hub, logger)
	shortlistService := service.NewShortlistService(repo, usageService)
	messageService := service.NewMessageService(repo, usageService, notificationService, hub, cacheClient, logger)
	quickPickService := service.NewQuickPickService(repo, cacheClient, usageService, interestService, recorder, logger)
	safetyService := service.NewSafetyService(repo, hub, cacheClient, logger)
	adminService := service.NewAdminService(repo, cacheClient, cacheClient, cfg.AccessTokenTTL, logger)

	// Initialize handlers
	h := handlers{
		info: handler.New(version),
		health: handler.NewHealthHandler(map[string]handler.HealthChecker{
			"postgres": repo,
			"redis":    cacheClient,
		}),
		metrics:      handler.NewMetricsHandler(recorder),
		auth:         handler.NewAuthHandler(authService, logger),
		profile:      handler.NewProfileHandler(profileService, authService, logger),
		interest:     handler.NewInterestHandler(interestService, logger),
		shortlist:    handler.NewShortlistHandler(shortlistService, logger),
		message:      handler.NewMessageHandler(messageService, logger),
		quickPick:    handler.NewQuickPickHandler(quickPickService, logger),
		safety:       handler.NewSafetyHandler(safetyService, logger),
		notification: handler.NewNotificationHandler(notificationService, logger),
		usage:        handler.NewUsageHandler(usageService, logger),
		admin:        handler.NewAdminHandler(adminService, logger, version),
		websocket:    hub.Handler(messageService, cfg.GetCORSAllowedOrigins()),
	}

	ipLimiter := middleware.NewIPLimiter(cfg.RateLimitAuthRPS, cfg.RateLimitAuthBurst, logger)

	// Setup router
	r := setupRouter(h, routerDeps{
		cfg:       cfg,
		logger:    logger,
		tokens:    issuer,
		sessions:  cacheClient,
		limiter:   cacheClient,
		ipLimiter: ipLimiter,
		recorder:  recorder,
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Background components
	srv.Go("realtime-hub", hub.Run)
	srv.OnShutdown("realtime-hub", hub.Shutdown)

	srv.Go("ip-limiter-cleanup", func(ctx context.Context) error {
		ipLimiter.Run(ctx, ipLimiterCleanupInterval)
		return nil
	})

	var sender push.Sender
	if cfg.PushEnabled {
		sender = push.NewClient(cfg.PushEndpoint, cfg.PushAccessToken, push.NewHTTPClient())
	}
	pushWorker := push.NewWorker(pushRepo, sender, logger, recorder)
	pushWorker.SetBatchSize(cfg.PushBatchSize)
	pushWorker.SetPollInterval(cfg.PushPollInterval)
	srv.Go("push-worker", pushWorker.Run)

	if cfg.AnalyticsEnabled {
		analyticsWorker := analytics.NewWorker(cacheClient.Client(), repo, analytics.WorkerConfig{
			BatchSize: cfg.AnalyticsBatchSize,
		}, logger, recorder)
		srv.Go("analytics-worker", analyticsWorker.Run)
		srv.OnShutdown("analytics-worker", analyticsWorker.Shutdown)
	}

	if cfg.SchedulerEnabled {
		sched := scheduler.New(repo, pushRepo, logger, recorder)
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		srv.OnShutdown("scheduler", sched.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
		"push_enabled", cfg.PushEnabled,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "aroosi-api")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
