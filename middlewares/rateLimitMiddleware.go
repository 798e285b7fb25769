package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client IP in fixed Redis windows.
type RateLimiter struct {
	client func() *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client func() *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// RateLimiterFromEnv reads RATE_LIMIT_MAX_REQUESTS (600) and
// RATE_LIMIT_WINDOW_SECONDS (60).
func RateLimiterFromEnv() *RateLimiter {
	limit := config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)
	if limit <= 0 {
		limit = 600
	}
	window := config.IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
	if window <= 0 {
		window = 60
	}
	return NewRateLimiter(config.GetRedisDB, int64(limit), time.Duration(window)*time.Second)
}

// Middleware is a no-op until Redis is connected. The first hit of a window
// sets its expiry.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := rl.client()
		if client == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := config.RedisKey("ratelimit:" + c.ClientIP())

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
				c.AbortWithError(http.StatusInternalServerError, err)
				return
			}
		}
		if count > rl.limit {
			c.Header("Retry-After", fmt.Sprint(int(rl.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": fmt.Sprintf("rate limit exceeded, try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
