package handlers

import (
	"net/http"

	"github.com/01moynul/starter-api/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Session is the handler for GET /v1/session
// It reports the user id carried by the caller's token (set by middleware.Auth).
func (h *Handlers) Session(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"userID": userID})
}
