// Package auth resolves request credentials into a caller identity and
// hosts the OTP login flows.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/identity"
	"github.com/polo-core/polo_core/internal/logging"
	"github.com/polo-core/polo_core/internal/metrics"
	"github.com/polo-core/polo_core/internal/tenant"
)

const (
	// HeaderTenantKey carries the publishable tenant key.
	HeaderTenantKey = "X-Publishable-Key"
	minTokenLength  = 10
)

// Reasons a bearer token was ignored in favour of tenant-only identity.
const (
	FallbackNoToken             = "no_token"
	FallbackExpired             = "expired"
	FallbackInvalid             = "invalid"
	FallbackProviderUnavailable = "provider_unavailable"
	FallbackNoEmail             = "no_email"
	FallbackTenantMismatch      = "tenant_mismatch"
)

// Credentials are the raw inbound authentication headers.
type Credentials struct {
	TenantKey     string
	Authorization string
}

// CredentialsFrom reads credentials from the request headers.
func CredentialsFrom(c *fiber.Ctx) Credentials {
	return Credentials{
		TenantKey:     strings.TrimSpace(c.Get(HeaderTenantKey)),
		Authorization: c.Get(fiber.HeaderAuthorization),
	}
}

// Resolution is the terminal state of the resolver. It is one of
// TenantUser, TenantOnly, ConsoleUser or Rejected.
type Resolution interface {
	outcome() string
}

// TenantUser is an SDK end-user authenticated by tenant key and session.
type TenantUser struct {
	SubjectID string
	Email     string
	TenantID  string
}

// TenantOnly is a tenant-key caller without a usable session. The subject
// is the tenant owner.
type TenantOnly struct {
	OwnerID        string
	TenantID       string
	FallbackReason string
}

// Email returns the synthetic identity email for the tenant.
func (t TenantOnly) Email() string {
	return "app:" + t.TenantID
}

// ConsoleUser is a developer authenticated by session alone.
type ConsoleUser struct {
	SubjectID string
	Email     string
}

// Rejected is a typed authentication failure.
type Rejected struct {
	Code    apperr.Code
	Message string
}

// Status returns the HTTP status class of the rejection.
func (r Rejected) Status() int {
	return apperr.HTTPStatus(r.Code)
}

// Err converts the rejection to a classified error.
func (r Rejected) Err() error {
	return apperr.New(r.Code, r.Message)
}

func (TenantUser) outcome() string  { return identity.KindTenantUser }
func (TenantOnly) outcome() string  { return identity.KindTenantOnly }
func (ConsoleUser) outcome() string { return identity.KindConsole }
func (Rejected) outcome() string    { return "rejected" }

// TenantLookup resolves publishable keys.
type TenantLookup interface {
	FindByKey(ctx context.Context, key string) (tenant.App, error)
}

// TokenVerifier verifies bearer session tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (identity.Verified, error)
}

// Resolver turns credentials into a Resolution. It never signs or
// decrypts anything.
type Resolver struct {
	tenants  TenantLookup
	verifier TokenVerifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewResolver builds a resolver.
func NewResolver(tenants TenantLookup, verifier TokenVerifier, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{tenants: tenants, verifier: verifier, logger: logger, metrics: m}
}

// Resolve evaluates credentials: tenant key first, then bearer session.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) Resolution {
	var res Resolution
	if creds.TenantKey != "" {
		res = r.resolveTenant(ctx, creds)
	} else {
		res = r.resolveConsole(ctx, creds)
	}
	r.metrics.AuthOutcome(res.outcome())
	return res
}

func (r *Resolver) resolveTenant(ctx context.Context, creds Credentials) Resolution {
	if !strings.HasPrefix(creds.TenantKey, tenant.KeyPrefix) {
		return Rejected{Code: apperr.CodeInvalidKeyFormat, Message: "invalid API key format; must start with " + tenant.KeyPrefix}
	}
	app, err := r.tenants.FindByKey(ctx, creds.TenantKey)
	if errors.Is(err, tenant.ErrNotFound) {
		return Rejected{Code: apperr.CodeKeyNotFound, Message: "invalid API key; project not found"}
	}
	if err != nil {
		r.logger.Error("tenant lookup failed", logging.Key("tenant_key", creds.TenantKey), slog.Any("error", err))
		return Rejected{Code: apperr.CodeProviderUnavailable, Message: "authentication service unavailable"}
	}

	token, ok := bearer(creds.Authorization)
	if !ok {
		return TenantOnly{OwnerID: app.OwnerID, TenantID: app.ID, FallbackReason: FallbackNoToken}
	}
	verified, err := r.verifier.Verify(ctx, token)
	reason := fallbackReason(err)
	if err == nil && verified.TenantID != app.ID {
		reason = FallbackTenantMismatch
	}
	if reason != "" {
		r.logger.Debug("session ignored for tenant key",
			logging.Key("tenant_id", app.ID),
			slog.String("reason", reason),
		)
		return TenantOnly{OwnerID: app.OwnerID, TenantID: app.ID, FallbackReason: reason}
	}
	return TenantUser{SubjectID: verified.SubjectID, Email: verified.Email, TenantID: app.ID}
}

func (r *Resolver) resolveConsole(ctx context.Context, creds Credentials) Resolution {
	token, ok := bearer(creds.Authorization)
	if !ok {
		return Rejected{Code: apperr.CodeUnauthenticated, Message: "missing authentication; provide a bearer token or " + HeaderTenantKey}
	}
	if len(token) < minTokenLength {
		return Rejected{Code: apperr.CodeUnauthenticated, Message: "invalid token format"}
	}
	verified, err := r.verifier.Verify(ctx, token)
	switch {
	case errors.Is(err, identity.ErrProviderUnavailable):
		r.logger.Error("identity provider unavailable", slog.Any("error", err))
		return Rejected{Code: apperr.CodeProviderUnavailable, Message: "authentication service unavailable"}
	case errors.Is(err, identity.ErrNoEmail):
		return Rejected{Code: apperr.CodeNoEmail, Message: "user has no email associated"}
	case err != nil:
		return Rejected{Code: apperr.CodeInvalidToken, Message: "invalid or expired token"}
	case verified.TenantID != "":
		// App user sessions are only valid together with their tenant key.
		return Rejected{Code: apperr.CodeInvalidToken, Message: "invalid or expired token"}
	}
	return ConsoleUser{SubjectID: verified.SubjectID, Email: verified.Email}
}

func fallbackReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, identity.ErrTokenExpired):
		return FallbackExpired
	case errors.Is(err, identity.ErrProviderUnavailable):
		return FallbackProviderUnavailable
	case errors.Is(err, identity.ErrNoEmail):
		return FallbackNoEmail
	default:
		return FallbackInvalid
	}
}

// bearer extracts the token from an Authorization header.
func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Principal converts a successful resolution to the request principal.
func Principal(res Resolution) (identity.Principal, bool) {
	switch v := res.(type) {
	case TenantUser:
		return identity.Principal{Kind: identity.KindTenantUser, SubjectID: v.SubjectID, Email: v.Email, TenantID: v.TenantID}, true
	case TenantOnly:
		return identity.Principal{Kind: identity.KindTenantOnly, SubjectID: v.OwnerID, Email: v.Email(), TenantID: v.TenantID}, true
	case ConsoleUser:
		return identity.Principal{Kind: identity.KindConsole, SubjectID: v.SubjectID, Email: v.Email}, true
	default:
		return identity.Principal{}, false
	}
}
