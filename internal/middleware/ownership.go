package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AccountOwnership creates a Gin middleware handler that ensures the
// authenticated session matches the account the route operates on. A session
// may only touch its own passbook; anything else is forbidden outright, not
// obscured.
func AccountOwnership() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := GetLoggerFromCtx(c.Request.Context())

		authenticated, found := GetAccountNumberFromContext(c)
		if !found {
			logger.Error("Account number missing from context during ownership check")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		requested := c.Param("accountNumber")
		if requested != "" && requested != authenticated {
			logger.Warn("Session attempted to access another passbook", slog.String("requested_account", requested))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You may only access your own account"})
			return
		}

		c.Next()
	}
}
