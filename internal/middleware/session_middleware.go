package middleware

import (
	"strings"

	"hubon-pickup/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// SessionHeader carries the Shopify session id set by the embedded admin.
	SessionHeader     = "X-Shopify-Session-Id"
	SessionContextKey = "session_id"
)

// SessionMiddleware requires a Shopify session id on admin routes and stores
// it on the context for handlers.
func SessionMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sessionID == "" {
			RespondError(c, logger, errors.NewDomainError(errors.CodeSessionMissing, "session missing", SessionHeader+" header is required"))
			return
		}

		c.Set(SessionContextKey, sessionID)
		c.Next()
	}
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionContextKey)
}
