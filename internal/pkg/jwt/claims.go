// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by StockSense tokens. Role is
// the role recorded on the profile at issue time; it is a cached copy and
// the profiles table stays authoritative.
type Claims struct {
	IdentityID     int64  `json:"identity_id"`
	Email          string `json:"email,omitempty"`
	Role           string `json:"role,omitempty"`
	SessionPurpose string `json:"session_purpose"` // access, refresh
	jwt.RegisteredClaims
}

// IsAdmin checks if the token was issued to an admin profile.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}

// IsAccess reports whether this is an access token (not refresh).
func (c *Claims) IsAccess() bool {
	return c.SessionPurpose == "access"
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
