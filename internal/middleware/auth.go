package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
)

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(token string) (*utils.Identity, error)
}

// AuthMiddleware requires a valid bearer token and stores the caller's id
// under "userId".
func AuthMiddleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		id, err := v.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("userId", id.UserID)
		c.Set("identity", id)
		c.Next()
	}
}

// MustUserID returns the authenticated user id set by AuthMiddleware.
func MustUserID(c *gin.Context) string {
	return c.MustGet("userId").(string)
}
