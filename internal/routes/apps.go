package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/tenant"
)

// RegisterAppRoutes wires developer app management.
func RegisterAppRoutes(r fiber.Router, h *tenant.Handler, authn, console fiber.Handler) {
	r.Post("/apps", authn, console, h.Create)
	r.Get("/apps", authn, console, h.List)
}
