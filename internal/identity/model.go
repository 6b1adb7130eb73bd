package identity

import "time"

// User is a directory entry. TenantID is empty for developer (console)
// accounts and set for SDK end-users of an app.
type User struct {
	ID          string
	TenantID    string
	Email       string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Principal kinds.
const (
	KindTenantUser = "tenant_user"
	KindTenantOnly = "tenant_only"
	KindConsole    = "console"
)

// Principal is the resolved caller of a request. TenantID is empty for
// console callers.
type Principal struct {
	Kind      string `json:"kind"`
	SubjectID string `json:"subject_id"`
	Email     string `json:"email"`
	TenantID  string `json:"tenant_id,omitempty"`
}

// HasTenant reports whether the principal was authenticated with a tenant key.
func (p Principal) HasTenant() bool {
	return p.TenantID != ""
}

// Verified is what the provider learns from a valid session token.
type Verified struct {
	SubjectID string
	Email     string
	TenantID  string
}

// Session is an issued bearer token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
