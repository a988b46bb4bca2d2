package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitOptions configures a fixed-window per-IP limiter.
type RateLimitOptions struct {
	Scope   string
	Max     int64
	Window  time.Duration
	Message string
}

// LoginRateLimit allows 10 login attempts per IP per minute.
var LoginRateLimit = RateLimitOptions{
	Scope:   "login",
	Max:     10,
	Window:  time.Minute,
	Message: "登录尝试过于频繁，请稍后再试",
}

// RateLimit counts requests per client IP in redis. Redis errors let the
// request through.
func RateLimit(rdb *redis.Client, opts RateLimitOptions, log *zap.Logger) gin.HandlerFunc {
	window := opts.Window
	if window <= 0 {
		window = time.Second
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rdb == nil || ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		bucket := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("ideaflow:rate_limit:%s:%s:%d", opts.Scope, ip, bucket)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			if log != nil {
				log.Warn("rate limit unavailable", zap.String("scope", opts.Scope), zap.Error(err))
			}
			c.Next()
			return
		}

		if count == 1 {
			rdb.PExpire(ctx, key, window+time.Second)
		}

		if count > opts.Max {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":      0,
				"code":    http.StatusTooManyRequests,
				"message": opts.Message,
			})
			return
		}

		c.Next()
	}
}
