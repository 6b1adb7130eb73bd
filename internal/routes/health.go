package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/network"
)

const healthPingTimeout = 2 * time.Second

// RegisterHealthRoutes adds a readiness endpoint reporting store connectivity.
func RegisterHealthRoutes(r fiber.Router, d Deps, net network.Network) {
	r.Get("/health", func(c *fiber.Ctx) error {
		dbStatus := "disabled"
		redisStatus := "disabled"

		ctx, cancel := context.WithTimeout(c.UserContext(), healthPingTimeout)
		defer cancel()
		if d.DB != nil {
			dbStatus = "ok"
			if err := d.DB.Ping(ctx); err != nil {
				d.Logger.Warn("health: postgres ping failed", slog.Any("error", err))
				dbStatus = "unavailable"
			}
		}
		if d.Cache != nil {
			redisStatus = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				d.Logger.Warn("health: redis ping failed", slog.Any("error", err))
				redisStatus = "unavailable"
			}
		}
		status := http.StatusOK
		overall := "ok"
		if dbStatus == "unavailable" || redisStatus == "unavailable" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    overall,
			"service":   d.Cfg.AppName,
			"version":   d.Cfg.Version,
			"network":   net.Name,
			"checks":    fiber.Map{"postgres": dbStatus, "redis": redisStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
