package redis

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
)

const defaultBucketPrefix = "TokenBucket"

//go:embed token_bucket.lua
var tokenBucketSource string

var tokenBucketScript = redis.NewScript(tokenBucketSource)

// TokenBucketRepository keeps token bucket balances in Redis. Each check-and-decrement runs as a
// single Lua script so concurrent callers on different processes never lose an update.
type TokenBucketRepository struct {
	client *redis.Client
	prefix string
}

// NewTokenBucketRepository constructs a repository using the provided Redis client and key prefix.
func NewTokenBucketRepository(client *redis.Client, keyPrefix string) *TokenBucketRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultBucketPrefix
	}
	return &TokenBucketRepository{client: client, prefix: prefix}
}

// Take consumes amount tokens when the refilled balance allows it.
func (r *TokenBucketRepository) Take(ctx context.Context, spec port.BucketSpec, id string, amount int, now time.Time) (bool, error) {
	if err := validateSpec(spec); err != nil {
		return false, err
	}
	if amount <= 0 {
		return false, errors.New("amount must be positive")
	}

	valueKey, tsKey := r.keys(spec.Name, id)
	args := []any{
		spec.Max,
		spec.Interval.Seconds(),
		amount,
		float64(now.UnixMicro()) / 1e6,
		refillHorizon(spec),
	}

	res, err := tokenBucketScript.Run(ctx, r.client, []string{valueKey, tsKey}, args...).Int64()
	if err != nil {
		return false, fmt.Errorf("redis token bucket %s: %w", spec.Name, err)
	}

	return res == 1, nil
}

// Reset deletes the balance and timestamp of (spec.Name, id).
func (r *TokenBucketRepository) Reset(ctx context.Context, spec port.BucketSpec, id string) error {
	if strings.TrimSpace(spec.Name) == "" {
		return errors.New("bucket name is required")
	}

	valueKey, tsKey := r.keys(spec.Name, id)
	if err := r.client.Del(ctx, valueKey, tsKey).Err(); err != nil {
		return fmt.Errorf("redis reset token bucket %s: %w", spec.Name, err)
	}
	return nil
}

func (r *TokenBucketRepository) keys(name, id string) (string, string) {
	base := fmt.Sprintf("%s:%s:%s", r.prefix, name, id)
	return base + ":value", base + ":timestamp"
}

func validateSpec(spec port.BucketSpec) error {
	switch {
	case strings.TrimSpace(spec.Name) == "":
		return errors.New("bucket name is required")
	case spec.Max <= 0:
		return errors.New("bucket max must be positive")
	case spec.Interval <= 0:
		return errors.New("bucket interval must be positive")
	}
	return nil
}

// refillHorizon is the time an empty bucket needs to become full again, in whole seconds.
func refillHorizon(spec port.BucketSpec) int64 {
	ttl := int64(math.Ceil(float64(spec.Max) * spec.Interval.Seconds()))
	if ttl < 1 {
		ttl = 1
	}
	return ttl
}

var _ port.TokenBucketStore = (*TokenBucketRepository)(nil)
