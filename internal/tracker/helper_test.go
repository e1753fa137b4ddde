package tracker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rohmanhakim/page-tracker/internal/metadata"
	"github.com/rohmanhakim/page-tracker/internal/store"
	"github.com/stretchr/testify/mock"
)

type fetcherMock struct {
	mock.Mock
}

func (m *fetcherMock) Fetch(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type lookupEvent struct {
	url     string
	outcome metadata.LookupOutcome
	count   int64
}

type lookupSink struct {
	metadata.NoopSink
	mu      sync.Mutex
	lookups []lookupEvent
}

func (s *lookupSink) RecordLookup(url string, outcome metadata.LookupOutcome, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, lookupEvent{url: url, outcome: outcome, count: count})
}

var errStoreDown = errors.New("store down")

// failingStore wraps a working store and fails the selected operations.
type failingStore struct {
	store.Store
	failIncr  bool
	failGet   bool
	failSetEx bool
}

func (f *failingStore) Incr(ctx context.Context, key string) (int64, error) {
	if f.failIncr {
		return 0, errStoreDown
	}
	return f.Store.Incr(ctx, key)
}

func (f *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errStoreDown
	}
	return f.Store.Get(ctx, key)
}

func (f *failingStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.failSetEx {
		return errStoreDown
	}
	return f.Store.SetEx(ctx, key, value, ttl)
}
