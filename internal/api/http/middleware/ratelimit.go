package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit applies a per-actor token bucket to mutating requests.
// Reads pass through untouched. Limiters live for the process lifetime;
// the actor population is small (back-office staff).
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	limiterFor := func(actor string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[actor]
		if !ok {
			l = rate.NewLimiter(rps, burst)
			limiters[actor] = l
		}
		return l
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		key := c.GetString(ctxActorID)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiterFor(key).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
