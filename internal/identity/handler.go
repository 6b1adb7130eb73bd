package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Me returns the resolved caller.
func (h *Handler) Me(c *fiber.Ctx) error {
	p, ok := PrincipalFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	resp := fiber.Map{
		"kind":       p.Kind,
		"subject_id": p.SubjectID,
		"email":      p.Email,
	}
	if p.HasTenant() {
		resp["tenant_id"] = p.TenantID
	}
	if p.Kind != KindTenantOnly {
		if user, err := h.service.repo.FindByID(c.UserContext(), p.SubjectID); err == nil {
			resp["created_at"] = user.CreatedAt
			resp["last_login_at"] = user.LastLoginAt
		}
	}
	return c.Status(http.StatusOK).JSON(resp)
}
