// internal/middleware/gate_middleware.go
package middleware

import (
	"net/http"

	"stocksense-service/internal/gate"

	"github.com/gin-gonic/gin"
)

// Gate enforces a route's access requirements from the identity bound by
// Auth or OptionalAuth. An unresolved state answers 503 with Retry-After
// rather than redirecting: a client must never be bounced to the login
// page while its session is still being resolved.
func Gate(req gate.Requirements) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := snapshotFromContext(c)

		switch decision := gate.Decide(snapshot, req); decision.Outcome {
		case gate.Render:
			c.Next()
		case gate.Redirect:
			c.Redirect(http.StatusSeeOther, decision.Target)
			c.Abort()
		case gate.Pending:
			c.Header("Retry-After", "1")
			c.AbortWithStatus(http.StatusServiceUnavailable)
		}
	}
}

func snapshotFromContext(c *gin.Context) gate.Snapshot {
	_, authenticated := c.Get("identity_id")
	return gate.Snapshot{
		Authenticated: authenticated,
		Admin:         c.GetBool("is_admin"),
	}
}
