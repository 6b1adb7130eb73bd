package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/identity"
)

// Handler exposes the OTP login endpoints.
type Handler struct {
	svc *Service
}

// NewHandler builds an auth handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type challengeRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type walletResponse struct {
	PublicKey string `json:"public_key"`
	Status    string `json:"status"`
	TxHash    string `json:"tx_hash,omitempty"`
}

func parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func tenantOf(c *fiber.Ctx) (string, error) {
	p, ok := identity.PrincipalFrom(c)
	if !ok || !p.HasTenant() {
		return "", apperr.New(apperr.CodeTenantRequired, "publishable key required")
	}
	return p.TenantID, nil
}

func challengeResponse(c *fiber.Ctx, expiresAt time.Time) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":     "success",
		"message":    "Code sent to email",
		"expires_at": expiresAt,
	})
}

// SDKChallenge handles POST /auth/challenge.
func (h *Handler) SDKChallenge(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	var req challengeRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	expiresAt, err := h.svc.SDKChallenge(c.UserContext(), tenantID, req.Email)
	if err != nil {
		return err
	}
	return challengeResponse(c, expiresAt)
}

// SDKVerify handles POST /auth/verify.
func (h *Handler) SDKVerify(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	var req verifyRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	login, err := h.svc.SDKVerify(c.UserContext(), tenantID, req.Email, req.Code)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":     "success",
		"token":      login.Session.Token,
		"expires_at": login.Session.ExpiresAt,
		"user":       userResponse{ID: login.User.ID, Email: login.User.Email},
		"wallet": walletResponse{
			PublicKey: login.Wallet.PublicKey,
			Status:    login.Wallet.Status,
			TxHash:    login.Wallet.TxHash,
		},
	})
}

// ConsoleChallenge handles POST /console/auth/challenge.
func (h *Handler) ConsoleChallenge(c *fiber.Ctx) error {
	var req challengeRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	expiresAt, err := h.svc.ConsoleChallenge(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return challengeResponse(c, expiresAt)
}

// ConsoleVerify handles POST /console/auth/verify.
func (h *Handler) ConsoleVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	login, err := h.svc.ConsoleVerify(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":     "success",
		"token":      login.Session.Token,
		"expires_at": login.Session.ExpiresAt,
		"user":       userResponse{ID: login.User.ID, Email: login.User.Email},
	})
}
