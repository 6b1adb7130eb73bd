// Package otp issues and verifies single-use email login codes.
package otp

import "time"

// Code is a stored one-time code. Scope is the tenant id for SDK logins and
// empty for console logins. Only a digest of the code is stored.
type Code struct {
	ID         string
	Scope      string
	Identifier string
	Digest     string
	ExpiresAt  time.Time
	Used       bool
	CreatedAt  time.Time
}

// Live reports whether the code can still be consumed at now.
func (c Code) Live(now time.Time) bool {
	return !c.Used && now.Before(c.ExpiresAt)
}
