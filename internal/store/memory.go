package store

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rohmanhakim/page-tracker/internal/metadata"
)

const backendMemory = "memory"

type memoryEntry struct {
	value string
	// zero means the entry never expires
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store backed by a map guarded by an RWMutex.
//
// Expired entries are treated as absent on read and dropped lazily on the
// next write to the same key. Counters are shared only by callers holding
// the same *MemoryStore; use RedisStore or MemcacheStore to share them
// between processes.
type MemoryStore struct {
	mu           sync.RWMutex
	data         map[string]memoryEntry
	now          func() time.Time
	metadataSink metadata.MetadataSink
}

func NewMemoryStore(metadataSink metadata.MetadataSink) *MemoryStore {
	return NewMemoryStoreWithClock(metadataSink, time.Now)
}

// NewMemoryStoreWithClock lets tests drive expiry with a fake clock.
func NewMemoryStoreWithClock(metadataSink metadata.MetadataSink, now func() time.Time) *MemoryStore {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &MemoryStore{
		data:         make(map[string]memoryEntry),
		now:          now,
		metadataSink: metadataSink,
	}
}

func (m *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, m.fail("MemoryStore.Incr", key, &StoreError{
			Message: err.Error(),
			Cause:   ErrCauseCommandFailed,
			Err:     err,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if ok && entry.expired(m.now()) {
		ok = false
		entry = memoryEntry{}
	}

	var current int64
	if ok {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, m.fail("MemoryStore.Incr", key, &StoreError{
				Message: fmt.Sprintf("%q", entry.value),
				Cause:   ErrCauseNotAnInteger,
				Err:     err,
			})
		}
		current = parsed
	}
	if current == math.MaxInt64 {
		return 0, m.fail("MemoryStore.Incr", key, &StoreError{
			Cause: ErrCauseValueOutOfRange,
		})
	}

	current++
	entry.value = strconv.FormatInt(current, 10)
	m.data[key] = entry
	return current, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, m.fail("MemoryStore.Get", key, &StoreError{
			Message: err.Error(),
			Cause:   ErrCauseCommandFailed,
			Err:     err,
		})
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok || entry.expired(m.now()) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryStore) SetEx(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return m.fail("MemoryStore.SetEx", key, &StoreError{
			Message: err.Error(),
			Cause:   ErrCauseCommandFailed,
			Err:     err,
		})
	}
	if ttl <= 0 {
		return m.fail("MemoryStore.SetEx", key, &StoreError{
			Message: fmt.Sprintf("invalid expire time %v", ttl),
			Cause:   ErrCauseCommandFailed,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Clear removes all entries. Primarily useful for testing.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]memoryEntry)
}

// Size returns the number of unexpired entries.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, e := range m.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (m *MemoryStore) fail(action string, key string, err *StoreError) error {
	recordStoreError(m.metadataSink, backendMemory, action, key, err)
	return err
}
