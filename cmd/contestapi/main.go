package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/config"
	"github.com/noah-isme/arena-go/internal/database"
	"github.com/noah-isme/arena-go/internal/handler"
	"github.com/noah-isme/arena-go/internal/middleware"
	"github.com/noah-isme/arena-go/internal/models"
	"github.com/noah-isme/arena-go/internal/repository"
	"github.com/noah-isme/arena-go/internal/router"
	"github.com/noah-isme/arena-go/internal/service"
	dockerexec "github.com/noah-isme/arena-go/pkg/docker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(&models.Contest{}, &models.Problem{}, &models.CodeSnippet{}, &models.TestCase{}, &models.Submission{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	executor, err := dockerexec.NewDockerExecutor(dockerexec.Config{
		Host:          cfg.DockerHost,
		Timeout:       cfg.ExecutionTimeout,
		MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
		CPUShares:     int64(cfg.CodeRunCPUShares),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create docker executor")
	}
	defer executor.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())

	contestRepo := repository.NewContestRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	problemService := service.NewProblemService(problemRepo, contestRepo, logger)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, contestRepo, executor, validate, logger, service.JudgeConfig{
		ExecutionTimeout: cfg.ExecutionTimeout,
		MemoryLimitMB:    cfg.CodeRunMemoryMB,
		CPUShares:        cfg.CodeRunCPUShares,
	})
	contestService := service.NewContestService(contestRepo, logger)
	contestQueryService := service.NewContestQueryService(contestRepo, problemRepo, submissionRepo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	contestService.StartSweeper(ctx, cfg.ContestSweepInterval)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins, StackTraces: cfg.IsDevelopment()})
	router.Register(app, cfg, router.Dependencies{
		Component:           "contest-api",
		HealthProbes: map[string]handler.HealthProbe{
			"database": database.Ping(db),
			"docker":   executor.Ping,
		},
		ProblemHandler:      handler.NewProblemHandler(problemService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, validate, logger),
		ContestHandler:      handler.NewContestHandler(contestQueryService, logger),
		ContestAdminHandler: handler.NewContestAdminHandler(contestService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		RunLimiter:          middleware.RateLimit("runs", cfg.RunsPerMinute, time.Minute),
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
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "contest-api").Logger()
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
