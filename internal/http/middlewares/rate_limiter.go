package middlewares

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window per-caller request budget backed by
// redis, so the budget holds across replicas. The window key is the caller
// identity (X-User-Id when present, client IP otherwise) plus the window
// start, and INCR+EXPIRE keeps the counter self-cleaning.
//
// If redis is down we let traffic through. Rate limiting is protection, not
// a gate the whole service should fall over on.
func RateLimiter(rdb *redis.Client, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if limit <= 0 {
			ctx.Next()
			return
		}

		caller := ctx.GetHeader("X-User-Id")
		if caller == "" {
			caller = ctx.ClientIP()
		}

		windowStart := time.Now().Unix() / int64(window.Seconds())
		key := "ratelimit:" + caller + ":" + strconv.FormatInt(windowStart, 10)

		rctx := ctx.Request.Context()

		count, err := rdb.Incr(rctx, key).Result()

		if err != nil {
			log.WarnContext(rctx, "rate limiter unavailable, allowing request", "err", err)
			ctx.Next()
			return
		}

		if count == 1 {
			_ = rdb.Expire(rctx, key, window).Err()
		}

		if count > int64(limit) {
			ctx.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "Too many requests, slow down",
				},
			})
			return
		}

		ctx.Next()
	}
}
