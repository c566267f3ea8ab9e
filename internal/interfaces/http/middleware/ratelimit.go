package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
)

// WindowCounter counts hits on key within a fixed window and reports the
// time until the window resets. The Redis and in-memory call budget stores
// both satisfy it, so limits hold across replicas when Redis is up.
type WindowCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimit allows limit requests per window for each key. If the counter
// fails the request goes through.
func RateLimit(counter WindowCounter, limit int, window time.Duration, key func(*gin.Context) string) gin.HandlerFunc {
	if counter == nil || limit <= 0 {
		return passThrough
	}
	return func(c *gin.Context) {
		n, resetIn, err := counter.Increment(c.Request.Context(), "ratelimit:"+key(c), window)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(int64(limit)-n, 0), 10))
		if n > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(resetIn.Seconds()))))
			abort(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, "Too many requests. Please try again later.")
			return
		}
		c.Next()
	}
}

// ByClientIP keys requests by client address
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByIntegration keys requests by the integration_id route parameter, so a
// noisy shop cannot starve the others
func ByIntegration(c *gin.Context) string {
	return "integration:" + c.Param("integration_id")
}
