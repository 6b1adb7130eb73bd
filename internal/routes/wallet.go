package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints. guards resolve the
// caller, require a user session and set the tenant scope.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, guards []fiber.Handler, idempotent fiber.Handler) {
	r.Post("/wallet/create", chain(guards, idempotent, h.Create)...)
	r.Get("/wallet/balance", chain(guards, h.Balance)...)
	r.Get("/history", chain(guards, h.History)...)
}

func chain(guards []fiber.Handler, handlers ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guards)+len(handlers))
	out = append(out, guards...)
	return append(out, handlers...)
}
