package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/school-records-api/internal/config"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthCheck returns a handler that reports application health information.
// A failing database ping downgrades the status and answers 503.
func HealthCheck(cfg config.Config, db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Database:    "up",
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				payload.Status = "degraded"
				payload.Database = "down"
				return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
					Success: false,
					Data:    payload,
					Message: "database unreachable",
				})
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
