package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialhub/socialhub/backend/go-services/pkg/metrics"
	"golang.org/x/time/rate"
)

// Limit describes a per-client budget of Max requests per Window for one
// route scope (e.g. "login").
type Limit struct {
	Scope   string
	Max     int
	Window  time.Duration
	Message string
}

func (l Limit) normalized() Limit {
	if l.Max < 1 {
		l.Max = 1
	}
	if l.Window < time.Second {
		l.Window = time.Second
	}
	if l.Message == "" {
		l.Message = "Too many requests"
	}
	return l
}

// per-key limiter store (simple in-memory token-bucket)
var limiterStore sync.Map // map[string]*rate.Limiter

// getLimiter returns (and lazily creates) a token-bucket limiter for the given key
func getLimiter(key string, l Limit) *rate.Limiter {
	if v, ok := limiterStore.Load(key); ok {
		return v.(*rate.Limiter)
	}
	every := l.Window / time.Duration(l.Max)
	v, _ := limiterStore.LoadOrStore(key, rate.NewLimiter(rate.Every(every), l.Max))
	return v.(*rate.Limiter)
}

// clientKey prefers the authenticated identity and falls back to the client IP.
func clientKey(c *gin.Context) string {
	if id, ok := Identity(c); ok {
		return "id:" + id
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a token bucket per
// scope and client: a burst of l.Max refilled evenly over l.Window.
func RateLimitMiddleware(l Limit) gin.HandlerFunc {
	l = l.normalized()
	return func(c *gin.Context) {
		lim := getLimiter(l.Scope+"|"+clientKey(c), l)
		if !lim.Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": l.Message})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
