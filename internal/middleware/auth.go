package middleware

import (
	"net/http"
	"strings"

	"github.com/01moynul/starter-api/internal/auth"
	"github.com/gin-gonic/gin"
)

// UserIDKey is the context key holding the authenticated user id.
const UserIDKey = "userID"

// Auth guards a route group with a Bearer token issued by signer.
func Auth(signer *auth.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			return
		}

		userID, err := signer.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
