package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/replyreminder/replyreminder/internal/metrics"
	"github.com/replyreminder/replyreminder/internal/middleware"
)

// API is the full service surface served by the router.
type API interface {
	ReminderAPI
	WebhookService
}

// RouterConfig wires the handlers and middleware of the API.
type RouterConfig struct {
	Logger         *slog.Logger
	Service        API
	Metrics        metrics.Recorder
	MetricsHandler http.Handler // optional, served at /metrics
	Health         *HealthHandler

	Webhook   WebhookConfig
	RateLimit middleware.RateLimitConfig
	Auth      middleware.ServiceAuthConfig
	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimit.Logger == nil {
		cfg.RateLimit.Logger = logger
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil, nil)
	}

	reminders := NewReminderHandler(cfg.Service, logger.With("component", "handler"))
	webhook := NewWebhookHandler(cfg.Service, cfg.Webhook, cfg.Metrics, logger.With("component", "webhook"))

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Security.MaxRequestBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.Security.MaxRequestBodySize))
	}

	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	r.Get("/", Index)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Post("/user/", reminders.CreateUser)
	r.Post("/linkaccount/", reminders.LinkAccount)
	r.Post("/reminder/", reminders.CreateReminder)

	// Dispatcher-facing endpoints.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ServiceAuth(cfg.Auth))
		r.Get("/reminders/", reminders.ListUnsent)
		r.Post("/reminder/sent/", reminders.MarkSent)
	})

	r.Get("/webhook/", webhook.Verify)
	r.With(middleware.RateLimitIP(cfg.RateLimit)).Post("/webhook/", webhook.Receive)

	return r
}
