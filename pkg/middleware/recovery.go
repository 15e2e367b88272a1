package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// Recovery converts panics into opaque 500 responses. The full panic is
// logged with the correlation ID and forwarded to sentry when configured.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(c.Request.Context()).Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
				)

				if hub := sentry.CurrentHub(); hub.Client() != nil {
					hub.Recover(r)
				}

				common.ErrorResponse(c, http.StatusInternalServerError, common.CodeInternalError, "internal server error")
				c.Abort()
			}
		}()

		c.Next()
	}
}
