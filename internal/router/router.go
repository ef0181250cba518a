package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/handler"
	"github.com/noah-isme/gema-feedback-dashboard/internal/middleware"
	"github.com/noah-isme/gema-feedback-dashboard/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TeacherDashboardHandler *handler.TeacherDashboardHandler
	Store                   handler.StoreStatus
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Store))

	if deps.TeacherDashboardHandler != nil {
		teacher := app.Group(middleware.DashboardPathPrefix)
		deps.TeacherDashboardHandler.Register(teacher, middleware.RateLimit("export", cfg.ExportRateLimit, cfg.ExportRateWindow))
	}
}
