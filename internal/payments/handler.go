package payments

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/identity"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// sendRequest accepts amount as a JSON string or number.
type sendRequest struct {
	Destination string      `json:"destination"`
	Amount      json.Number `json:"amount"`
	Asset       string      `json:"asset"`
}

// Send submits a payment from the caller's custody wallet.
func (h *Handler) Send(c *fiber.Ctx) error {
	p, ok := identity.PrincipalFrom(c)
	if !ok {
		return apperr.New(apperr.CodeUnauthenticated, "authentication required")
	}
	tenantID, ok := identity.TenantScope(c)
	if !ok {
		return apperr.New(apperr.CodeTenantRequired, "tenant is required")
	}

	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.Destination == "" || req.Amount.String() == "" {
		return apperr.New(apperr.CodeInputValidation, "missing required fields: destination, amount")
	}

	res, err := h.service.Send(c.UserContext(), SendInput{
		TenantID:       tenantID,
		UserIdentifier: p.Email,
		Destination:    req.Destination,
		Amount:         req.Amount.String(),
		Asset:          req.Asset,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"tx_hash": res.TxHash,
		"amount":  res.Amount,
		"asset":   res.Asset,
	})
}
