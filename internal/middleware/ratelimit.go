package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/metrics"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
	"golang.org/x/time/rate"
)

const staleAfter = 3 * time.Minute

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByClientIP charges requests to the client address.
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByUser charges authenticated requests to the caller and falls back to the
// client address before AuthMiddleware has run.
func ByUser(c *gin.Context) string {
	if id := c.GetString("userId"); id != "" {
		return "user:" + id
	}
	return ByClientIP(c)
}

// Throttle holds one token bucket per key. Idle buckets are dropped on the
// next sweep, which runs at most once per minute on the request path.
type Throttle struct {
	scope string
	limit rate.Limit
	burst int
	key   KeyFunc

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle allows perMinute requests per key with the given burst.
func NewThrottle(scope string, perMinute float64, burst int, key KeyFunc) *Throttle {
	return &Throttle{
		scope:   scope,
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		key:     key,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow spends one token from key's bucket.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > time.Minute {
		for k, b := range t.buckets {
			if now.Sub(b.lastSeen) > staleAfter {
				delete(t.buckets, k)
			}
		}
		t.lastSweep = now
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Size reports how many buckets are tracked.
func (t *Throttle) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// Middleware rejects requests over the limit with 429.
func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := t.key(c)
		if t.Allow(key) {
			c.Next()
			return
		}

		metrics.RequestsThrottled.WithLabelValues(t.scope).Inc()
		logger.Warn().
			Str("scope", t.scope).
			Str("key", key).
			Str("path", c.Request.URL.Path).
			Msg("Rate limit exceeded")

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   "Too many requests",
		})
	}
}

var (
	authThrottle    = NewThrottle("auth", 20, 10, ByClientIP)
	generalThrottle = NewThrottle("api", 600, 50, ByClientIP)
	uploadThrottle  = NewThrottle("upload", 30, 5, ByUser)
)

// AuthRateLimit guards login and registration.
func AuthRateLimit() gin.HandlerFunc {
	return authThrottle.Middleware()
}

func GeneralRateLimit() gin.HandlerFunc {
	return generalThrottle.Middleware()
}

// UploadRateLimit is charged per user, so it must run after AuthMiddleware.
func UploadRateLimit() gin.HandlerFunc {
	return uploadThrottle.Middleware()
}
