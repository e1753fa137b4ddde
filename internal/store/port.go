package store

import (
	"context"
	"time"
)

// Store is the shared key-value cache holding request counters and
// cached results. Implementations must make Incr atomic across all
// clients of the same backend.
type Store interface {
	// Incr adds one to the integer at key, creating it at 0 first when
	// absent, and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Get returns the value at key. found is false when the key is absent
	// or its expiry has passed.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// SetEx writes value at key, replacing any previous value, and makes
	// it expire after ttl.
	SetEx(ctx context.Context, key string, value string, ttl time.Duration) error
	Close() error
}
