// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"stocksense-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware converts a handler panic into a logged 500 so one
// bad request never takes the process down.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
				)
				if !c.Writer.Written() {
					response.Error(c, http.StatusInternalServerError, "internal server error", nil)
				}
			}
		}()
		c.Next()
	}
}
