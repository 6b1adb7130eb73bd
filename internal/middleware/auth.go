package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/auth"
	"github.com/polo-core/polo_core/internal/identity"
	"github.com/polo-core/polo_core/internal/tenant"
)

const (
	tenantQueryParam = "tenant_id"
	tenantHeader     = "X-Tenant-ID"
)

// Authenticate resolves the caller from the tenant key and bearer token
// and stores the principal in the request locals. Tenant-key callers get
// their tenant scope set here.
func Authenticate(resolver *auth.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res := resolver.Resolve(c.UserContext(), auth.CredentialsFrom(c))
		principal, ok := auth.Principal(res)
		if !ok {
			if rej, isRejected := res.(auth.Rejected); isRejected {
				return rej.Err()
			}
			return apperr.New(apperr.CodeUnauthenticated, "authentication required")
		}
		identity.SetPrincipal(c, principal)
		if principal.HasTenant() {
			identity.SetTenantScope(c, principal.TenantID)
		}
		return c.Next()
	}
}

// RequireConsole only admits developers signed in without a tenant key.
func RequireConsole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := identity.PrincipalFrom(c)
		if !ok {
			return apperr.New(apperr.CodeUnauthenticated, "authentication required")
		}
		if p.Kind != identity.KindConsole {
			return apperr.New(apperr.CodeForbidden, "developer session required")
		}
		return c.Next()
	}
}

// RequireUser rejects the tenant-only fallback identity. A publishable key
// is public, so acting on a wallet needs a signed-in end user or developer.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := identity.PrincipalFrom(c)
		if !ok || p.Kind == identity.KindTenantOnly {
			return apperr.New(apperr.CodeUnauthenticated, "user session required")
		}
		return c.Next()
	}
}

// AppOwnership checks that a developer owns an app.
type AppOwnership interface {
	OwnedBy(ctx context.Context, ownerID, appID string) (tenant.App, error)
}

// TenantScope lets developers act inside one of their own apps by passing
// tenant_id as a query parameter or X-Tenant-ID header. Tenant-key callers
// keep the scope of their key and cannot override it.
func TenantScope(apps AppOwnership) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := identity.PrincipalFrom(c)
		if !ok {
			return apperr.New(apperr.CodeUnauthenticated, "authentication required")
		}
		if p.HasTenant() {
			return c.Next()
		}
		requested := strings.TrimSpace(c.Query(tenantQueryParam))
		if requested == "" {
			requested = strings.TrimSpace(c.Get(tenantHeader))
		}
		if requested == "" {
			return apperr.New(apperr.CodeTenantRequired, "tenant_id or publishable key required")
		}
		app, err := apps.OwnedBy(c.UserContext(), p.SubjectID, requested)
		if err != nil {
			return err
		}
		identity.SetTenantScope(c, app.ID)
		return c.Next()
	}
}
