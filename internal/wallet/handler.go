package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/identity"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// scope returns the tenant and user identifier the request acts for.
func scope(c *fiber.Ctx) (string, string, error) {
	p, ok := identity.PrincipalFrom(c)
	if !ok {
		return "", "", apperr.New(apperr.CodeUnauthenticated, "authentication required")
	}
	tenantID, ok := identity.TenantScope(c)
	if !ok {
		return "", "", apperr.New(apperr.CodeTenantRequired, "tenant is required")
	}
	return tenantID, p.Email, nil
}

// Create returns the caller's wallet, provisioning it on first use.
func (h *Handler) Create(c *fiber.Ctx) error {
	tenantID, userID, err := scope(c)
	if err != nil {
		return err
	}
	res, err := h.service.GetOrCreate(c.UserContext(), tenantID, userID)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Status == StatusCreated {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(res)
}

// Balance returns live balances for the caller's wallet.
func (h *Handler) Balance(c *fiber.Ctx) error {
	tenantID, userID, err := scope(c)
	if err != nil {
		return err
	}
	balance, err := h.service.Balance(c.UserContext(), tenantID, userID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(balance)
}

// History returns recent payments for the caller's wallet.
func (h *Handler) History(c *fiber.Ctx) error {
	tenantID, userID, err := scope(c)
	if err != nil {
		return err
	}
	page, err := h.service.History(c.UserContext(), tenantID, userID, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(page)
}
