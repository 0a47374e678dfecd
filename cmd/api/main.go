// Package main is the entrypoint for the ReplyReminder API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/replyreminder/replyreminder/internal/cache"
	"github.com/replyreminder/replyreminder/internal/config"
	"github.com/replyreminder/replyreminder/internal/handler"
	"github.com/replyreminder/replyreminder/internal/identity"
	"github.com/replyreminder/replyreminder/internal/logging"
	"github.com/replyreminder/replyreminder/internal/messenger"
	"github.com/replyreminder/replyreminder/internal/metrics"
	"github.com/replyreminder/replyreminder/internal/middleware"
	"github.com/replyreminder/replyreminder/internal/repository"
	"github.com/replyreminder/replyreminder/internal/server"
	"github.com/replyreminder/replyreminder/internal/service"
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

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", logging.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", logging.RedactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", logging.SanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", logging.RedactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Outbound clients
	httpClient := messenger.NewHTTPClient(0)
	chat := messenger.NewClient(messenger.Config{
		GraphURL:        cfg.MessengerGraphURL,
		PageAccessToken: cfg.PageAccessToken,
		LoginURL:        cfg.MessengerLoginURL,
		HTTPClient:      httpClient,
		Logger:          logger,
	})
	resolver := identity.New(identity.Config{
		JWTSecret:  cfg.IdentityJWTSecret,
		GraphURL:   cfg.IdentityGraphURL,
		HTTPClient: httpClient,
		Cache:      cacheClient,
		Logger:     logger,
	})

	// Initialize services
	recorder := metrics.NewPrometheus()
	svc := service.New(repo, resolver, chat, recorder, logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	if len(corsCfg.AllowedOrigins) == 0 {
		corsCfg.AllowedOrigins = []string{"*"}
	}

	r := handler.NewRouter(handler.RouterConfig{
		Logger:         logger,
		Service:        svc,
		Metrics:        recorder,
		MetricsHandler: recorder.Handler(),
		Health:         handler.NewHealthHandler(repo, cacheClient),
		Webhook: handler.WebhookConfig{
			VerifyToken: cfg.MessengerVerifyToken,
			AppSecret:   cfg.MessengerAppSecret,
		},
		RateLimit: middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: cacheClient,
			Enabled: cfg.RateLimitWebhookEnabled,
			RPS:     cfg.RateLimitWebhookRPS,
			Burst:   cfg.RateLimitWebhookBurst,
		},
		Auth: middleware.ServiceAuthConfig{
			Logger:    logger,
			TokenHash: cfg.ServiceTokenHash,
			Cache:     cacheClient,
		},
		CORS: corsCfg,
		Security: middleware.SecurityConfig{
			IsDevelopment:      cfg.IsDevelopment(),
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		},
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Closed in reverse: cache first, then the pool.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"service_auth", cfg.ServiceTokenHash != "",
		"signature_check", cfg.MessengerAppSecret != "",
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
