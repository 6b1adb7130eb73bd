package tenant

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/identity"
)

// Handler exposes app management endpoints for developer accounts.
type Handler struct {
	service *Service
}

// NewHandler builds an app HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name string `json:"name"`
}

func owner(c *fiber.Ctx) (string, error) {
	p, ok := identity.PrincipalFrom(c)
	if !ok || p.Kind != identity.KindConsole {
		return "", apperr.New(apperr.CodeForbidden, "developer session required")
	}
	return p.SubjectID, nil
}

// Create registers an app for the calling developer.
func (h *Handler) Create(c *fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	app, err := h.service.Create(c.UserContext(), ownerID, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(app)
}

// List returns the calling developer's apps.
func (h *Handler) List(c *fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	apps, err := h.service.List(c.UserContext(), ownerID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"apps": apps})
}
