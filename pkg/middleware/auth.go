package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/transitlab/tsp-api/pkg/common"
)

const userIDContextKey = "user_id"

// Claims represents the JWT claims issued by the auth service.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and the userid header. The header must
// match the token subject; mobile clients send both on every call.
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDHeader := strings.TrimSpace(c.GetHeader("userid"))
		if userIDHeader == "" {
			common.ErrorResponse(c, http.StatusBadRequest, common.CodeMissingHeader, "userid header required")
			c.Abort()
			return
		}

		headerUserID, err := strconv.ParseInt(userIDHeader, 10, 64)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, common.CodeMissingHeader, "userid header malformed")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.ErrorResponse(c, http.StatusUnauthorized, common.CodeUnauthorized, "authorization required")
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, common.ErrUnauthorized
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			common.ErrorResponse(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || claims.UserID != headerUserID {
			common.ErrorResponse(c, http.StatusUnauthorized, common.CodeUnauthorized, "token does not match userid")
			c.Abort()
			return
		}

		c.Set(userIDContextKey, claims.UserID)
		c.Next()
	}
}

// GetUserID extracts the authenticated user ID from context
func GetUserID(c *gin.Context) (int64, error) {
	userID, exists := c.Get(userIDContextKey)
	if !exists {
		return 0, common.ErrUnauthorized
	}
	return userID.(int64), nil
}

// GetZone returns the caller-supplied IANA timezone, defaulting to UTC.
// Daily-limit windows are computed in this zone.
func GetZone(c *gin.Context) string {
	zone := strings.TrimSpace(c.GetHeader("zone"))
	if zone == "" {
		return "UTC"
	}
	return zone
}
