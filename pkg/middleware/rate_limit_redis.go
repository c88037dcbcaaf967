package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/socialhub/socialhub/backend/go-services/pkg/metrics"
)

// RedisRateLimitMiddleware provides a fixed-window Redis-backed limiter:
// INCR a per-window key and reject once it exceeds l.Max. Counters are shared
// by every process using the same Redis.
func RedisRateLimitMiddleware(client *redis.Client, l Limit) gin.HandlerFunc {
	if client == nil {
		// fallback to in-memory if no client
		return RateLimitMiddleware(l)
	}
	l = l.normalized()
	windowSeconds := int64(l.Window / time.Second)
	return func(c *gin.Context) {
		bucket := time.Now().Unix() / windowSeconds
		redisKey := fmt.Sprintf("rl:%s:%s:%d", l.Scope, clientKey(c), bucket)

		cnt, err := client.Incr(c.Request.Context(), redisKey).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if cnt == 1 {
			_ = client.Expire(c.Request.Context(), redisKey, time.Duration(windowSeconds+1)*time.Second).Err()
		}
		if cnt > int64(l.Max) {
			c.Header("Retry-After", fmt.Sprintf("%d", windowSeconds))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": l.Message})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
