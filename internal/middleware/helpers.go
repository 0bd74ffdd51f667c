// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// GetIdentityID gets the authenticated identity ID from context.
func GetIdentityID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("identity_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// MustGetIdentityID gets the identity ID from context or panics.
func MustGetIdentityID(c *gin.Context) int64 {
	identityID, exists := GetIdentityID(c)
	if !exists {
		panic("identity_id not found in context")
	}
	return identityID
}

// GetJTI gets the session token ID from context.
func GetJTI(c *gin.Context) (string, bool) {
	v, exists := c.Get("jti")
	if !exists {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}

// MustGetJTI gets the JTI from context or panics.
func MustGetJTI(c *gin.Context) string {
	jti, exists := GetJTI(c)
	if !exists {
		panic("jti not found in context")
	}
	return jti
}

// GetEmail gets the session email from context.
func GetEmail(c *gin.Context) string {
	return c.GetString("email")
}

// IsAuthenticated checks if the request carries a valid session.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("identity_id")
	return exists
}

// IsAdmin reports whether the session's profile role is admin.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool("is_admin")
}
