package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
)

// LoggingMiddleware writes one line per request. Socket.io long-polling
// traffic only shows up at debug level.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.Query())

		c.Next()

		status := c.Writer.Status()
		event := levelFor(path, status)

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("user_id", c.GetString("userId")).
			Int("body_size", c.Writer.Size()).
			Msg("request")
	}
}

func levelFor(path string, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	case strings.HasPrefix(path, "/socket.io"):
		return logger.Debug()
	default:
		return logger.Info()
	}
}

// redactQuery hides handshake credentials before they reach the log.
func redactQuery(q url.Values) string {
	for _, k := range []string{"token", "auth_token"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	return q.Encode()
}
