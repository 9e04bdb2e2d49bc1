package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/limitd/pkg/enum"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

type RateLimitMiddlewareServicer interface {
	Check(ctx context.Context, req rate_limiter.CheckRequest) (rate_limiter.Decision, error)
}

// RateLimitByIPMiddleware protects the service's own API: every caller is
// limited by client IP through the limiter itself.
func RateLimitByIPMiddleware(servicer RateLimitMiddlewareServicer, algorithm enum.Algorithm) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := servicer.Check(c.Request.Context(), rate_limiter.CheckRequest{
			Identifier: c.ClientIP(),
			Scope:      enum.ScopeIP,
			Algorithm:  algorithm,
		})

		var exceeded *rate_limiter.ExceededError
		if errors.As(err, &exceeded) {
			slog.Info("request not allowed", "ip", c.ClientIP(), "reason", exceeded.Reason)
			status := http.StatusTooManyRequests
			if exceeded.Reason == rate_limiter.ReasonBlacklisted {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error":       exceeded.Error(),
				"retry_after": int64(exceeded.RetryAfter.Seconds()),
			})
			return
		}

		c.Next()
	}
}
