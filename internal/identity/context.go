package identity

import "github.com/gofiber/fiber/v2"

const (
	principalKey   = "principal"
	tenantScopeKey = "tenant_scope"
)

// SetPrincipal stores the resolved caller on the request.
func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
}

// PrincipalFrom returns the resolved caller, if any.
func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}

// SetTenantScope stores the tenant a tenant-scoped operation runs under.
func SetTenantScope(c *fiber.Ctx, tenantID string) {
	c.Locals(tenantScopeKey, tenantID)
}

// TenantScope returns the tenant set by SetTenantScope.
func TenantScope(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(tenantScopeKey).(string)
	return id, ok && id != ""
}
