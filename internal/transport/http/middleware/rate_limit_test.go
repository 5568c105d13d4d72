package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/telemetry"
)

type fakeBucket struct {
	tokens   int
	err      error
	interval time.Duration

	seenIDs []string
}

func (b *fakeBucket) Name() string { return "http_ip" }

func (b *fakeBucket) HasTokens(_ context.Context, id string, amount int) (bool, error) {
	b.seenIDs = append(b.seenIDs, id)
	if b.err != nil {
		return false, b.err
	}
	if b.tokens < amount {
		return false, nil
	}
	b.tokens -= amount
	return true, nil
}

func (b *fakeBucket) RetryAfter(amount int) time.Duration {
	return time.Duration(amount) * b.interval
}

func newLimitedRouter(t *testing.T, bucket Bucket, identifier IdentifierFunc, metrics *telemetry.AuthMetrics) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext())
	router.Use(BucketLimiter(bucket, identifier, metrics, zaptest.NewLogger(t)))
	router.GET("/api/v1/auth/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestBucketLimiterAllowsWhileTokensRemain(t *testing.T) {
	bucket := &fakeBucket{tokens: 2, interval: time.Second}
	router := newLimitedRouter(t, bucket, func(*gin.Context) (string, bool) { return "192.0.2.1", true }, nil)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/ping", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
		if got := rr.Header().Get("Retry-After"); got != "" {
			t.Fatalf("expected no retry-after header, got %q", got)
		}
	}

	if len(bucket.seenIDs) != 2 || bucket.seenIDs[0] != "192.0.2.1" {
		t.Fatalf("unexpected identifiers %v", bucket.seenIDs)
	}
}

func TestBucketLimiterBlocksWhenEmpty(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewAuthMetrics(registry)

	bucket := &fakeBucket{tokens: 0, interval: 1500 * time.Millisecond}
	router := newLimitedRouter(t, bucket, func(*gin.Context) (string, bool) { return "192.0.2.1", true }, metrics)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/ping", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected retry-after 2, got %q", got)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if problem.Status != http.StatusTooManyRequests || problem.Type != rateLimitProblemType {
		t.Fatalf("unexpected problem %+v", problem)
	}
	if problem.RetryAfter != 2 {
		t.Fatalf("expected retry_after 2, got %d", problem.RetryAfter)
	}
	if problem.Instance != "/api/v1/auth/ping" {
		t.Fatalf("unexpected instance %q", problem.Instance)
	}
	if problem.TraceID != "trace-123" {
		t.Fatalf("expected trace id to be propagated, got %q", problem.TraceID)
	}

	expected := `
# HELP auth_rate_limited_total Total number of requests refused by a token bucket
# TYPE auth_rate_limited_total counter
auth_rate_limited_total{bucket="http_ip"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "auth_rate_limited_total"); err != nil {
		t.Fatalf("unexpected rate limited metric: %v", err)
	}
}

func TestBucketLimiterFailsClosed(t *testing.T) {
	bucket := &fakeBucket{err: errors.New("redis down")}
	router := newLimitedRouter(t, bucket, func(*gin.Context) (string, bool) { return "192.0.2.1", true }, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/ping", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if problem.Type != unavailableProblemType {
		t.Fatalf("unexpected problem type %q", problem.Type)
	}
}

func TestBucketLimiterSkipsWithoutIdentifier(t *testing.T) {
	bucket := &fakeBucket{tokens: 0, interval: time.Second}
	router := newLimitedRouter(t, bucket, func(*gin.Context) (string, bool) { return "", false }, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/ping", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(bucket.seenIDs) != 0 {
		t.Fatalf("expected bucket to be skipped, got %v", bucket.seenIDs)
	}
}

func TestBucketLimiterDefaultsToClientIP(t *testing.T) {
	bucket := &fakeBucket{tokens: 1, interval: time.Second}
	router := newLimitedRouter(t, bucket, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/ping", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(bucket.seenIDs) != 1 || bucket.seenIDs[0] != "198.51.100.7" {
		t.Fatalf("expected client ip identifier, got %v", bucket.seenIDs)
	}
}

func TestRespondRateLimitedRoundsUpToOneSecond(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	RespondRateLimited(c, 10*time.Millisecond)

	if got := rr.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected retry-after 1, got %q", got)
	}
}
