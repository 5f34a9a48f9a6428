package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/gin-gonic/gin"
)

// APIKeyAuth guards operational endpoints with a static API key.
// Checks X-API-Key header or api_key query parameter.
func APIKeyAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			common.ErrorResponse(c, http.StatusForbidden, "admin API disabled: no API key configured")
			c.Abort()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}
		if key == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "API key required")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid API key")
			c.Abort()
			return
		}

		c.Next()
	}
}
