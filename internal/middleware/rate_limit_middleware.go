package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hubon-pickup/internal/services/ratelimit"
	"hubon-pickup/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RateLimiter interface {
	Allow(ctx context.Context, subject string) (ratelimit.Decision, error)
}

type RateLimitRecorder interface {
	RecordRateLimited(endpoint string)
}

// RateLimitMiddleware limits storefront calls per shop and client IP. When
// the limiter cannot reach Redis the request is let through.
func RateLimitMiddleware(limiter RateLimiter, metrics RateLimitRecorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		shop := strings.ToLower(strings.TrimSpace(c.Query("myshopifyDomain")))
		if shop == "" {
			shop = "-"
		}
		subject := shop + ":" + c.ClientIP()

		decision, err := limiter.Allow(c.Request.Context(), subject)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("subject", subject),
				zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, decision)
		if !decision.Allowed {
			metrics.RecordRateLimited(c.FullPath())
			RespondError(c, logger, errors.NewDomainError(errors.CodeRateLimited, "rate limit exceeded", "too many requests for "+shop))
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	if d.Remaining < 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	if d.ResetAt.IsZero() {
		return
	}
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		retryAfter := int(time.Until(d.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	}
}
