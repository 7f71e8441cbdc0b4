package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORSMiddleware(frontendURL string) gin.HandlerFunc {
	origins := []string{"http://localhost:5173", "http://localhost:8081"}
	if frontendURL != "" {
		origins = append(origins, frontendURL)
	}
	config := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(config)
}

// AllowedOrigin reports whether a socket handshake origin is acceptable.
// Native mobile clients send no Origin header at all.
func AllowedOrigin(frontendURL string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		switch r.Header.Get("Origin") {
		case "", frontendURL, "http://localhost:5173", "http://localhost:8081":
			return true
		}
		return false
	}
}
