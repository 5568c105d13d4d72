package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
)

// ShortCodeRepository stores the recent short codes of each subject as a Redis list, newest first.
type ShortCodeRepository struct {
	client *red.Client
}

// NewShortCodeRepository constructs a short code repository with the provided Redis client.
func NewShortCodeRepository(client *red.Client) *ShortCodeRepository {
	return &ShortCodeRepository{client: client}
}

// Push prepends entry, drops everything past maxEntries and refreshes the list TTL inside MULTI/EXEC.
func (r *ShortCodeRepository) Push(ctx context.Context, key string, entry []byte, maxEntries int, ttl time.Duration) error {
	key = strings.TrimSpace(key)

	switch {
	case key == "":
		return errors.New("key is required")
	case len(entry) == 0:
		return errors.New("entry is required")
	case maxEntries <= 0:
		return errors.New("max entries must be positive")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, int64(maxEntries-1))
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis push short code: %w", err)
	}

	return nil
}

// Recent returns up to maxEntries raw entries, most recent first. A missing key yields no entries.
func (r *ShortCodeRepository) Recent(ctx context.Context, key string, maxEntries int) ([][]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("key is required")
	}
	if maxEntries <= 0 {
		return nil, errors.New("max entries must be positive")
	}

	values, err := r.client.LRange(ctx, key, 0, int64(maxEntries-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange short codes: %w", err)
	}

	entries := make([][]byte, 0, len(values))
	for _, v := range values {
		entries = append(entries, []byte(v))
	}

	return entries, nil
}

var _ port.ShortCodeStore = (*ShortCodeRepository)(nil)
