package limiter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rohmanhakim/page-tracker/pkg/timeutil"
)

// RateLimiter
// Spaces out requests to the same host
// Responsibilities:
// - Bookkeep each hostname's last fetch timestamp
// - Compute the remaining delay for each hostname
// - Hold callers back until their host may be fetched again
type RateLimiter interface {
	Wait(ctx context.Context, host string) error
}

type ConcurrentRateLimiter struct {
	mu          sync.Mutex
	baseDelay   time.Duration
	jitter      time.Duration
	hostTimings map[string]HostTiming
	rng         *rand.Rand
	now         func() time.Time
}

func NewConcurrentRateLimiter(
	baseDelay time.Duration,
	jitter time.Duration,
	randomSeed int64,
) *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		baseDelay:   baseDelay,
		jitter:      jitter,
		hostTimings: make(map[string]HostTiming),
		rng:         rand.New(rand.NewSource(randomSeed)),
		now:         time.Now,
	}
}

// SetClock replaces the time source. For tests.
func (r *ConcurrentRateLimiter) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Wait blocks until host may be fetched, then books the slot so that
// concurrent callers queue behind each other instead of all passing at once.
func (r *ConcurrentRateLimiter) Wait(ctx context.Context, host string) error {
	return timeutil.Sleep(ctx, r.reserve(host))
}

func (r *ConcurrentRateLimiter) reserve(host string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	timing, exists := r.hostTimings[host]
	var delay time.Duration
	if exists {
		delay = r.resolveDelayLocked(timing, now)
	}
	timing.lastFetchAt = now.Add(delay)
	r.hostTimings[host] = timing
	return delay
}

// ResolveDelay returns how long a request to host would wait now, without
// booking a slot. Zero for hosts never fetched.
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing, exists := r.hostTimings[host]
	if !exists {
		return 0
	}
	return r.resolveDelayLocked(timing, r.now())
}

// FinalDelay = BaseDelay + Jitter, minus the time since the last fetch.
// Caller must hold r.mu.
func (r *ConcurrentRateLimiter) resolveDelayLocked(timing HostTiming, now time.Time) time.Duration {
	finalDelay := r.baseDelay + timeutil.ComputeJitter(r.jitter, r.rng)

	elapsed := now.Sub(timing.lastFetchAt)
	if elapsed < finalDelay {
		return finalDelay - elapsed
	}
	return 0
}

// HostTiming returns a copy of the bookkeeping for host.
func (r *ConcurrentRateLimiter) HostTiming(host string) (HostTiming, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timing, exists := r.hostTimings[host]
	return timing, exists
}
