package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/arena-go/internal/config"
	"github.com/noah-isme/arena-go/internal/handler"
	"github.com/noah-isme/arena-go/internal/middleware"
	"github.com/noah-isme/arena-go/internal/observability"
)

// Dependencies groups router dependencies for registration. Each binary fills
// in the handlers it serves; nil handlers are skipped.
type Dependencies struct {
	Component           string
	HealthProbes        map[string]handler.HealthProbe
	ProblemHandler      *handler.ProblemHandler
	SubmissionHandler   *handler.SubmissionHandler
	ContestHandler      *handler.ContestHandler
	ContestAdminHandler *handler.ContestAdminHandler
	SessionHandler      *handler.SessionHandler
	JWTMiddleware       fiber.Handler
	RunLimiter          fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Component, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Contest API
	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(app.Group("/api/problems", jwtMiddleware))
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(app.Group("/api/submissions", jwtMiddleware), deps.RunLimiter)
	}
	if deps.ContestHandler != nil {
		deps.ContestHandler.Register(app.Group("/api/contests", jwtMiddleware))
	}
	if deps.ContestAdminHandler != nil {
		admin := app.Group("/api/admin/contests", jwtMiddleware, middleware.RequireRole("admin", "teacher"))
		deps.ContestAdminHandler.Register(admin)
	}

	// Gateway sessions
	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/sessions", jwtMiddleware))
	}
}
