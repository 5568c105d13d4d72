package port

import (
	"context"
	"time"
)

// BucketSpec describes a token bucket policy.
type BucketSpec struct {
	Name     string
	Max      int
	Interval time.Duration
}

// TokenBucketStore performs atomic check-and-decrement operations on shared token buckets.
type TokenBucketStore interface {
	// Take consumes amount tokens from the bucket identified by (spec.Name, id) when enough are
	// available at the supplied instant. It reports whether the tokens were consumed.
	Take(ctx context.Context, spec BucketSpec, id string, amount int, now time.Time) (bool, error)
	// Reset forgets every persisted value for (spec.Name, id).
	Reset(ctx context.Context, spec BucketSpec, id string) error
}
