package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/secureauth/secureauth/internal/account"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps, svc *account.Service) {
	health := func(c *fiber.Ctx) error {
		dbStatus := "ok"
		redisStatus := "disabled"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			dbStatus = "unavailable"
			d.Logger.Error("health check: storage ping failed", "error", err)
		}
		if d.Cache != nil {
			redisStatus = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = "unavailable"
				d.Logger.Warn("health check: redis ping failed", "error", err)
			}
		}
		status := http.StatusOK
		if dbStatus != "ok" || redisStatus == "unavailable" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
	app.Get("/health", health)
	app.Get("/healthz", health)
}

// RegisterDiagnosticRoutes adds the manual connectivity checks. Unlike the
// health routes they count against the default rate limits.
func RegisterDiagnosticRoutes(app *fiber.App, d Deps, svc *account.Service) {
	app.Get("/db_check", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			d.Logger.Error("database connection failed", "error", err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"database": "error",
				"solution": "Check PostgreSQL service and connection parameters",
			})
		}
		return c.JSON(fiber.Map{"database": "connected"})
	})

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "Backend is running!"})
	})
}
