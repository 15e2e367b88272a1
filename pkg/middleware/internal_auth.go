package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/transitlab/tsp-api/pkg/common"
)

// InternalAPIKey guards service-to-service endpoints with a shared secret
// sent in the X-Internal-API-Key header. Comparison is constant-time.
func InternalAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			common.ErrorResponse(c, http.StatusInternalServerError, common.CodeInternalError, "internal API key not configured")
			c.Abort()
			return
		}

		provided := c.GetHeader("X-Internal-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(provided)) != 1 {
			common.ErrorResponse(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid internal API key")
			c.Abort()
			return
		}

		c.Next()
	}
}
