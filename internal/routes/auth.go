package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/auth"
	"github.com/polo-core/polo_core/internal/identity"
)

// RegisterAuthRoutes wires the SDK login endpoints. Both need a tenant key,
// so they run behind authn.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, authn fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/challenge", authn, h.SDKChallenge)
	group.Post("/verify", authn, h.SDKVerify)
}

// RegisterConsoleRoutes wires developer login and the identity probe.
func RegisterConsoleRoutes(r fiber.Router, h *auth.Handler, ids *identity.Handler, authn fiber.Handler) {
	group := r.Group("/console/auth")
	group.Post("/challenge", h.ConsoleChallenge)
	group.Post("/verify", h.ConsoleVerify)
	group.Get("/me", authn, ids.Me)
}
