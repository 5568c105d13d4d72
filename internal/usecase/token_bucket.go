package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/telemetry"
)

// TokenBucket limits how often an action may be performed for a given id. Up to max tokens are
// held and one token regenerates every interval. State lives entirely in the store so every
// process sharing it enforces the same limit.
type TokenBucket struct {
	spec  port.BucketSpec
	store port.TokenBucketStore
	now   func() time.Time
}

// NewTokenBucket constructs a bucket named name. The name namespaces the persisted keys.
func NewTokenBucket(name string, max int, interval time.Duration, store port.TokenBucketStore) (*TokenBucket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("token bucket name is required")
	}
	if max <= 0 {
		return nil, fmt.Errorf("token bucket %s: max must be positive", name)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("token bucket %s: interval must be positive", name)
	}
	if store == nil {
		return nil, fmt.Errorf("token bucket %s: store is required", name)
	}

	return &TokenBucket{
		spec:  port.BucketSpec{Name: name, Max: max, Interval: interval},
		store: store,
		now:   time.Now,
	}, nil
}

// NewTokenBucketFromPolicy builds a bucket from its configured policy.
func NewTokenBucketFromPolicy(name string, policy config.BucketPolicy, store port.TokenBucketStore) (*TokenBucket, error) {
	return NewTokenBucket(name, policy.Max, policy.Interval, store)
}

// WithClock overrides the internal clock, used in tests.
func (b *TokenBucket) WithClock(now func() time.Time) *TokenBucket {
	if now != nil {
		b.now = now
	}
	return b
}

// Name returns the bucket name.
func (b *TokenBucket) Name() string {
	return b.spec.Name
}

// HasTokens consumes amount tokens for id when available and reports whether it did.
// A refused call leaves the bucket untouched. amount below 1 counts as 1.
func (b *TokenBucket) HasTokens(ctx context.Context, id string, amount int) (bool, error) {
	if amount < 1 {
		amount = 1
	}

	ok, err := b.store.Take(ctx, b.spec, id, amount, b.now())
	if err != nil {
		return false, fmt.Errorf("%w: bucket %s: %w", ErrRateLimiterUnavailable, b.spec.Name, err)
	}
	return ok, nil
}

// Reset restores id to a full bucket.
func (b *TokenBucket) Reset(ctx context.Context, id string) error {
	if err := b.store.Reset(ctx, b.spec, id); err != nil {
		return fmt.Errorf("reset bucket %s: %w", b.spec.Name, err)
	}
	return nil
}

// RetryAfter is an upper bound of the wait before amount tokens are available again.
func (b *TokenBucket) RetryAfter(amount int) time.Duration {
	if amount < 1 {
		amount = 1
	}
	return time.Duration(amount) * b.spec.Interval
}

// consume takes one token for id, translating refusals into *RateLimitExceededError.
func (b *TokenBucket) consume(ctx context.Context, id string, metrics *telemetry.AuthMetrics) error {
	ok, err := b.HasTokens(ctx, id, 1)
	if err != nil {
		return err
	}
	if !ok {
		metrics.RateLimited(b.spec.Name)
		return &RateLimitExceededError{Scope: b.spec.Name, RetryAfter: b.RetryAfter(1)}
	}
	return nil
}
