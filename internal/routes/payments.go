package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, guards []fiber.Handler, idempotent fiber.Handler) {
	r.Post("/payment/send", chain(guards, idempotent, h.Send)...)
}
