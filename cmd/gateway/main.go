package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/client"
	"github.com/noah-isme/arena-go/internal/config"
	"github.com/noah-isme/arena-go/internal/database"
	"github.com/noah-isme/arena-go/internal/handler"
	"github.com/noah-isme/arena-go/internal/middleware"
	"github.com/noah-isme/arena-go/internal/router"
	"github.com/noah-isme/arena-go/internal/service"
	"github.com/noah-isme/arena-go/internal/session"
	cloud "github.com/noah-isme/arena-go/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	api, err := client.New(client.Config{
		BaseURL: cfg.ContestAPIURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create contest api client")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, problem list cache and cross-node events disabled")
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-gateway")
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, falling back to redis for session events")
		} else {
			defer natsConn.Close()
		}
	}

	var renderer *service.ProblemRenderer
	if cfg.CloudinaryCloudName != "" {
		images, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		renderer = service.NewProblemRenderer(images, logger)
	}

	language, err := session.ParseLanguage(cfg.DefaultLanguage)
	if err != nil {
		logger.Fatal().Err(err).Str("language", cfg.DefaultLanguage).Msg("invalid default language")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := service.NewSessionEvents(redisClient, cfg.EventChannel, natsConn, logger)
	events.Start(ctx)

	sessions := service.NewSessionService(
		service.NewContestAPIBackend(api, redisClient, cfg.ProblemListCacheTTL, validate, logger),
		renderer,
		events,
		validate,
		service.SessionConfig{
			PollInterval:    cfg.PollInterval,
			TickInterval:    cfg.TickInterval,
			IdleTTL:         cfg.SessionIdleTTL,
			DefaultLanguage: language,
		},
		logger,
	)
	sessions.StartReaper(ctx)
	defer sessions.Shutdown()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins, StackTraces: cfg.IsDevelopment()})
	probes := map[string]handler.HealthProbe{"contest_api": api.Ping}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats %s", natsConn.Status())
			}
			return nil
		}
	}

	router.Register(app, cfg, router.Dependencies{
		Component:      "gateway",
		HealthProbes:   probes,
		SessionHandler: handler.NewSessionHandler(sessions, events, logger, 0),
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "gateway").Logger()
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
