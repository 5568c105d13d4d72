package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/logger"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/telemetry"
)

const (
	rateLimitProblemType    = "https://actionpopulaire.fr/errors/rate-limit-exceeded"
	rateLimitProblemTitle   = "Rate Limit Exceeded"
	unavailableProblemType  = "https://actionpopulaire.fr/errors/rate-limiter-unavailable"
	unavailableProblemTitle = "Service Unavailable"
)

// Bucket is the token bucket consulted by BucketLimiter.
type Bucket interface {
	Name() string
	HasTokens(ctx context.Context, id string, amount int) (bool, error)
	RetryAfter(amount int) time.Duration
}

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// ProblemDetails represents an RFC 9457 compatible error payload.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// BucketLimiter takes one token from bucket per request. Requests without identifier pass
// through. When the bucket store fails the request is refused with 503.
func BucketLimiter(bucket Bucket, identifier IdentifierFunc, metrics *telemetry.AuthMetrics, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if identifier == nil {
		identifier = ClientIPIdentifier()
	}

	return func(c *gin.Context) {
		if bucket == nil {
			c.Next()
			return
		}

		id, ok := identifier(c)
		if !ok || id == "" {
			c.Next()
			return
		}

		allowed, err := bucket.HasTokens(c.Request.Context(), id, 1)
		if err != nil {
			logger.Error("rate limit check failed",
				zap.String("bucket", bucket.Name()),
				zap.String("identifier", appLogger.MaskIP(id)),
				zap.Error(err),
			)
			RespondUnavailable(c, "Rate limiting is temporarily unavailable.")
			return
		}

		if !allowed {
			metrics.RateLimited(bucket.Name())
			RespondRateLimited(c, bucket.RetryAfter(1))
			return
		}

		c.Next()
	}
}

// RespondRateLimited aborts with a 429 problem document and a Retry-After header.
func RespondRateLimited(c *gin.Context, retryAfter time.Duration) {
	retrySeconds := int(math.Ceil(retryAfter.Seconds()))
	if retrySeconds < 1 {
		retrySeconds = 1
	}

	c.Header("Retry-After", strconv.Itoa(retrySeconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", retrySeconds),
		Instance:   instance(c),
		RetryAfter: retrySeconds,
		TraceID:    GetTraceID(c),
	})
}

// RespondUnavailable aborts with a 503 problem document.
func RespondUnavailable(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, ProblemDetails{
		Type:     unavailableProblemType,
		Title:    unavailableProblemTitle,
		Status:   http.StatusServiceUnavailable,
		Detail:   detail,
		Instance: instance(c),
		TraceID:  GetTraceID(c),
	})
}

func instance(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}
