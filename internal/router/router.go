package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/school-records-api/internal/config"
	"github.com/noah-isme/school-records-api/internal/handler"
	"github.com/noah-isme/school-records-api/internal/middleware"
	"github.com/noah-isme/school-records-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	StudyYearHandler  *handler.StudyYearHandler
	GradeHandler      *handler.GradeHandler
	SubjectHandler    *handler.SubjectHandler
	QuarterHandler    *handler.QuarterHandler
	StudentHandler    *handler.StudentHandler
	MarkHandler       *handler.MarkHandler
	MonitoringHandler *handler.MonitoringHandler
	AdminAuthHandler  *handler.AdminAuthHandler
	ActivityHandler   *handler.ActivityHandler
	HealthCheck       fiber.Handler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application. Public routes are
// registered ahead of the protected groups that share their prefix so that
// the auth middleware never sees them.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	health := deps.HealthCheck
	if health == nil {
		health = handler.HealthCheck(cfg, nil)
	}
	api.Get("/health", health)

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	// Public
	if deps.StudyYearHandler != nil {
		deps.StudyYearHandler.RegisterPublic(api.Group("/years"))
	}
	if deps.StudentHandler != nil {
		api.Get("/students/:id/marks",
			middleware.RateLimit("student_results", cfg.PublicRateLimit, cfg.PublicRateWindow),
			deps.StudentHandler.Results,
		)
	}
	if deps.AdminAuthHandler != nil {
		deps.AdminAuthHandler.RegisterPublic(api.Group("/admin"))
	}

	// Admin panel
	if deps.AdminAuthHandler != nil {
		api.Get("/admin/profile", jwtMiddleware, deps.AdminAuthHandler.Profile)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/admin/activity", jwtMiddleware, adminOnly))
	}
	if deps.StudyYearHandler != nil {
		deps.StudyYearHandler.Register(api.Group("/years", jwtMiddleware, adminOnly))
	}
	if deps.GradeHandler != nil {
		deps.GradeHandler.Register(api.Group("/grades", jwtMiddleware, adminOnly))
	}
	if deps.SubjectHandler != nil {
		deps.SubjectHandler.Register(api.Group("/subjects", jwtMiddleware, adminOnly))
	}
	if deps.QuarterHandler != nil {
		deps.QuarterHandler.Register(api.Group("/quarters", jwtMiddleware, adminOnly))
	}
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(api.Group("/students", jwtMiddleware, adminOnly))
	}
	if deps.MarkHandler != nil {
		deps.MarkHandler.Register(api.Group("/marks", jwtMiddleware, adminOnly))
	}
	if deps.MonitoringHandler != nil {
		deps.MonitoringHandler.Register(api.Group("/monitoring", jwtMiddleware, adminOnly))
	}
}
