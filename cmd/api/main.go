package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-dashboard/internal/cache"
	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/database"
	"github.com/noah-isme/gema-feedback-dashboard/internal/events"
	"github.com/noah-isme/gema-feedback-dashboard/internal/handler"
	"github.com/noah-isme/gema-feedback-dashboard/internal/middleware"
	"github.com/noah-isme/gema-feedback-dashboard/internal/router"
	"github.com/noah-isme/gema-feedback-dashboard/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("app", cfg.AppName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := database.NewLazySubmissionStore(cfg, logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close submission store")
		}
	}()

	var submissionCache cache.SubmissionCache = cache.NewMemoryCache(cfg.CacheTTL, logger)
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		submissionCache = cache.NewRedisCache(redisClient, cache.DefaultKeyPrefix, cfg.CacheTTL, logger)
	}

	var broadcaster service.InvalidationBroadcaster
	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Close()

		bus := events.NewNATSInvalidationBus(conn, cfg.NATSSubject, logger)
		if err := bus.Listen(ctx, submissionCache); err != nil {
			log.Fatalf("failed to subscribe to cache invalidations: %v", err)
		}
		broadcaster = bus
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	dashboardService := service.NewTeacherDashboardService(store, submissionCache, broadcaster, cfg.SubmissionsTable, cfg.Location(), logger)
	dashboardHandler := handler.NewTeacherDashboardHandler(dashboardService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		TeacherDashboardHandler: dashboardHandler,
		Store:                   store,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("store_driver", cfg.StoreDriver).
		Str("collection", cfg.SubmissionsTable).
		Msg("teacher dashboard started")

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
