package middleware

import (
	"strconv"
	"time"

	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware limits requests per caller and route using a Redis
// fixed window. Authenticated callers are keyed by tenant, others by IP.
func RateLimitMiddleware(rdb *redis.Client, limit, windowSeconds int) gin.HandlerFunc {
	window := time.Duration(windowSeconds) * time.Second

	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		caller := c.ClientIP()
		if tenantID, ok := GetTenantID(c); ok {
			caller = tenantID.Hex()
		}
		key := "ratelimit:" + caller + ":" + c.FullPath()

		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Fail open - don't block requests if Redis is down
			logger.Warn("Rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if count > int64(limit) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))
			utils.RespondWithTooManyRequests(c,
				"Too many requests. Please try again later.",
				gin.H{
					"retry_after": windowSeconds,
					"limit":       limit,
				})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}
