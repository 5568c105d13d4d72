package port

import (
	"context"
	"time"
)

// ShortCodeStore keeps the most recent serialized short codes of each subject.
type ShortCodeStore interface {
	// Push prepends entry to the subject list, trims it to maxEntries and refreshes its TTL as one unit.
	Push(ctx context.Context, key string, entry []byte, maxEntries int, ttl time.Duration) error
	// Recent returns up to maxEntries serialized entries, most recent first.
	Recent(ctx context.Context, key string, maxEntries int) ([][]byte, error)
}
