package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/identity"
	"github.com/polo-core/polo_core/internal/logging"
)

// Audit emits one structured line per request. Callers are identified by
// principal kind and truncated tenant and subject ids.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
		}
		if requestID := RequestIDFrom(c); requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if p, ok := identity.PrincipalFrom(c); ok {
			attrs = append(attrs,
				slog.String("principal", p.Kind),
				logging.Key("subject", p.SubjectID),
			)
		}
		if tenantID, ok := identity.TenantScope(c); ok {
			attrs = append(attrs, logging.Key("tenant_id", tenantID))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
