package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rohmanhakim/page-tracker/internal/metadata"
	"github.com/rohmanhakim/page-tracker/pkg/hashutil"
)

const (
	backendMemcache = "memcache"
	// memcached rejects keys longer than this
	memcacheMaxKeyLength = 250
	// expirations above 30 days are read as unix timestamps by memcached
	memcacheMaxRelativeExpiration = 30 * 24 * time.Hour
	hashedKeyPrefix               = "#b3:"
)

// MemcacheStore maps the Store port onto memcached incr, get and set.
//
// memcached cannot increment a missing key, so Incr seeds it with "0"
// using add, which is atomic against concurrent seeders, and increments
// again. Keys memcached cannot carry (too long, spaces, control bytes)
// are replaced by a BLAKE3 digest of the full key.
type MemcacheStore struct {
	client       *memcache.Client
	metadataSink metadata.MetadataSink
}

func NewMemcacheStore(metadataSink metadata.MetadataSink, servers ...string) *MemcacheStore {
	return NewMemcacheStoreFromClient(metadataSink, memcache.New(servers...))
}

func NewMemcacheStoreFromClient(metadataSink metadata.MetadataSink, client *memcache.Client) *MemcacheStore {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &MemcacheStore{
		client:       client,
		metadataSink: metadataSink,
	}
}

func (m *MemcacheStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, m.fail("MemcacheStore.Incr", key, err)
	}
	k := memcacheKey(key)

	n, err := m.client.Increment(k, 1)
	if errors.Is(err, memcache.ErrCacheMiss) {
		addErr := m.client.Add(&memcache.Item{Key: k, Value: []byte("0")})
		if addErr != nil && !errors.Is(addErr, memcache.ErrNotStored) {
			return 0, m.fail("MemcacheStore.Incr", key, addErr)
		}
		n, err = m.client.Increment(k, 1)
	}
	if err != nil {
		return 0, m.fail("MemcacheStore.Incr", key, err)
	}
	// memcached counters are unsigned 64-bit and wrap instead of failing
	if n > uint64(1<<63-1) {
		return 0, m.fail("MemcacheStore.Incr", key, fmt.Errorf("counter %d overflows int64", n))
	}
	return int64(n), nil
}

func (m *MemcacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, m.fail("MemcacheStore.Get", key, err)
	}
	item, err := m.client.Get(memcacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, m.fail("MemcacheStore.Get", key, err)
	}
	return string(item.Value), true, nil
}

func (m *MemcacheStore) SetEx(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return m.fail("MemcacheStore.SetEx", key, err)
	}
	if ttl <= 0 {
		return m.fail("MemcacheStore.SetEx", key, fmt.Errorf("invalid expire time %v", ttl))
	}
	err := m.client.Set(&memcache.Item{
		Key:        memcacheKey(key),
		Value:      []byte(value),
		Expiration: memcacheExpiration(ttl, time.Now()),
	})
	if err != nil {
		return m.fail("MemcacheStore.SetEx", key, err)
	}
	return nil
}

func (m *MemcacheStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return m.fail("MemcacheStore.Ping", "", err)
	}
	if err := m.client.Ping(); err != nil {
		return m.fail("MemcacheStore.Ping", "", err)
	}
	return nil
}

// Close is a no-op; the client keeps a small idle pool that is released
// with the process.
func (m *MemcacheStore) Close() error {
	return nil
}

func (m *MemcacheStore) fail(action string, key string, err error) error {
	storeErr := classifyMemcacheError(err)
	recordStoreError(m.metadataSink, backendMemcache, action, key, storeErr)
	return storeErr
}

func classifyMemcacheError(err error) *StoreError {
	msg := err.Error()

	var netErr net.Error
	var timeoutErr *memcache.ConnectTimeoutError
	switch {
	case strings.Contains(msg, "non-numeric"):
		return &StoreError{Message: msg, Cause: ErrCauseNotAnInteger, Err: err}
	case strings.Contains(msg, "overflows"):
		return &StoreError{Message: msg, Cause: ErrCauseValueOutOfRange, Err: err}
	case errors.As(err, &timeoutErr),
		errors.As(err, &netErr),
		errors.Is(err, memcache.ErrNoServers),
		errors.Is(err, memcache.ErrServerError):
		return &StoreError{Message: msg, Retryable: true, Cause: ErrCauseUnavailable, Err: err}
	default:
		return &StoreError{Message: msg, Cause: ErrCauseCommandFailed, Err: err}
	}
}

func memcacheKey(key string) string {
	if len(key) <= memcacheMaxKeyLength && legalMemcacheKey(key) {
		return key
	}
	digest, _ := hashutil.HashBytes([]byte(key), hashutil.HashAlgoBLAKE3)
	return hashedKeyPrefix + digest
}

func legalMemcacheKey(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

// memcacheExpiration converts ttl to memcached's expiration field:
// whole seconds, rounded up so sub-second TTLs still expire, or an
// absolute unix time past the 30 day relative limit.
func memcacheExpiration(ttl time.Duration, now time.Time) int32 {
	if ttl > memcacheMaxRelativeExpiration {
		return int32(now.Add(ttl).Unix())
	}
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return int32(secs)
}
