package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/aroosi/aroosi-api/internal/config"
	"github.com/aroosi/aroosi-api/internal/handler"
	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/middleware"
)

// handlers groups the HTTP handlers mounted by setupRouter.
type handlers struct {
	info         *handler.Handler
	health       *handler.HealthHandler
	metrics      *handler.MetricsHandler
	auth         *handler.AuthHandler
	profile      *handler.ProfileHandler
	interest     *handler.InterestHandler
	shortlist    *handler.ShortlistHandler
	message      *handler.MessageHandler
	quickPick    *handler.QuickPickHandler
	safety       *handler.SafetyHandler
	notification *handler.NotificationHandler
	usage        *handler.UsageHandler
	admin        *handler.AdminHandler
	websocket    http.Handler
}

// routerDeps carries the middleware collaborators.
type routerDeps struct {
	cfg       *config.Config
	logger    *slog.Logger
	tokens    middleware.TokenParser
	sessions  middleware.SessionChecker
	limiter   middleware.UserRateLimiter
	ipLimiter *middleware.IPLimiter
	recorder  metrics.Recorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h handlers, deps routerDeps) *chi.Mux {
	cfg := deps.cfg
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.Security(securityCfg))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	r.Use(middleware.Instrument(deps.recorder))

	// Platform endpoints (no auth required)
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)
	r.Get("/", h.info.Info)

	authCfg := middleware.AuthConfig{
		Logger:   deps.logger,
		Tokens:   deps.tokens,
		Sessions: deps.sessions,
	}
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:        deps.logger,
		Limiter:       deps.limiter,
		Enabled:       cfg.RateLimitAPIEnabled,
		RatePerMinute: cfg.RateLimitAPIRPM,
		Burst:         cfg.RateLimitAPIBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Credential endpoints are limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(deps.ipLimiter.Handler)
			r.Use(middleware.RequireJSON)
			r.Post("/auth/register", h.auth.Register)
			r.Post("/auth/login", h.auth.Login)
			r.Post("/auth/refresh", h.auth.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitUser(rateLimitCfg))
			r.Use(middleware.RequireJSON)

			r.Post("/auth/logout", h.auth.Logout)
			r.Get("/auth/me", h.auth.Me)

			r.Route("/profile", func(r chi.Router) {
				r.Post("/", h.profile.Create)
				r.Get("/", h.profile.Get)
				r.Patch("/", h.profile.Update)
				r.Delete("/", h.profile.Delete)
				r.Get("/viewers", h.profile.Viewers)
				r.Post("/boost", h.profile.Boost)
			})
			r.Get("/profiles/search", h.profile.Search)
			r.Get("/profiles/{id}", h.profile.View)

			r.Route("/interests", func(r chi.Router) {
				r.Post("/", h.interest.Send)
				r.Get("/sent", h.interest.Sent)
				r.Get("/received", h.interest.Received)
				r.Post("/{id}/respond", h.interest.Respond)
				r.Delete("/{id}", h.interest.Withdraw)
			})
			r.Get("/matches", h.interest.Matches)
			r.Delete("/matches/{id}", h.interest.Unmatch)

			r.Route("/shortlist", func(r chi.Router) {
				r.Post("/", h.shortlist.Add)
				r.Get("/", h.shortlist.List)
				r.Delete("/{userId}", h.shortlist.Remove)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", h.message.Conversations)
				r.Get("/{id}/messages", h.message.Messages)
				r.Post("/{id}/messages", h.message.Send)
				r.Post("/{id}/read", h.message.MarkRead)
			})
			r.Get("/ws", h.websocket.ServeHTTP)

			r.Route("/quick-picks", func(r chi.Router) {
				r.Get("/", h.quickPick.Today)
				r.Post("/{userId}/action", h.quickPick.Act)
			})

			r.Route("/safety", func(r chi.Router) {
				r.Post("/block", h.safety.Block)
				r.Delete("/block/{userId}", h.safety.Unblock)
				r.Get("/blocked", h.safety.Blocked)
				r.Post("/report", h.safety.Report)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.notification.List)
				r.Post("/read", h.notification.MarkRead)
				r.Post("/devices", h.notification.RegisterDevice)
				r.Delete("/devices/{token}", h.notification.UnregisterDevice)
			})

			r.Route("/usage", func(r chi.Router) {
				r.Get("/", h.usage.Summary)
				r.Get("/history", h.usage.History)
				r.Post("/track", h.usage.Track)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())
				r.Get("/stats", h.admin.Stats)
				r.Get("/profiles", h.admin.Profiles)
				r.Put("/users/{id}/ban", h.admin.SetBan)
				r.Put("/users/{id}/plan", h.admin.SetPlan)
				r.Get("/reports", h.admin.Reports)
				r.Put("/reports/{id}", h.admin.UpdateReport)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.info.NotFound)
	r.MethodNotAllowed(h.info.MethodNotAllowed)

	return r
}
