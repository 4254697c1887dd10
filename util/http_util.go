// util/http_util.go
package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
)

// ContextUserID is the gin context key the auth middleware stores the
// caller's subject under.
const ContextUserID = "requestingUserID"

func RespondWithError(c *gin.Context, code int, message string, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Int("status", code),
	}
	if code >= 500 {
		logger.Error(message, fields...)
	} else {
		logger.Warn(message, fields...)
	}
	c.JSON(code, gin.H{"error": message})
}

// GetUserIDFromContext returns "anonymous" when auth is disabled.
func GetUserIDFromContext(c *gin.Context) string {
	if userID := c.GetString(ContextUserID); userID != "" {
		return userID
	}
	return "anonymous"
}
