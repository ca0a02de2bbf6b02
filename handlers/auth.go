package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// RequireUser extracts the caller identity from the X-User-ID header set by
// the authenticating proxy. Requests without it are rejected.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUserID returns the authenticated user id stored by RequireUser.
func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
