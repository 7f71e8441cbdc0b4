package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
)

// ErrorHandlerMiddleware handles errors and panics
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stack).
					Msg("Panic recovered")

				c.JSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   "Internal Server Error",
					"message": "An unexpected error occurred",
				})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := errors.From(c.Errors.Last().Err)
		if appErr.Code >= http.StatusInternalServerError {
			logger.Error().Err(appErr).Str("path", c.Request.URL.Path).Msg("Unhandled request error")
		}

		c.JSON(appErr.Code, gin.H{
			"success": false,
			"error":   appErr.Message,
		})
	}
}
