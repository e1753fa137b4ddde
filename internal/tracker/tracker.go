package tracker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rohmanhakim/page-tracker/internal/fetcher"
	"github.com/rohmanhakim/page-tracker/internal/metadata"
	"github.com/rohmanhakim/page-tracker/internal/store"
	"golang.org/x/sync/singleflight"
)

/*
CachedFetcher counts every request for a URL and serves the page body
from the store while it is fresh.

Per call:
 1. increment the URL's request counter (always, hit or miss)
 2. look up the cached result
 3. on a hit return it; on a miss fetch once, store the body with the
    result TTL and return it

Errors from the store or the fetcher are returned unchanged. A failed
fetch stores nothing, so the next call fetches again. The counter
increment is never rolled back.

Without SingleFlight the lookup-fetch-store sequence is not guarded:
concurrent misses for the same URL may each fetch and each write, and the
last write wins.
*/
type CachedFetcher struct {
	store        store.Store
	fetcher      fetcher.Fetcher
	metadataSink metadata.MetadataSink
	options      Options
	group        *singleflight.Group
}

func NewCachedFetcher(
	kv store.Store,
	f fetcher.Fetcher,
	metadataSink metadata.MetadataSink,
	options Options,
) (*CachedFetcher, error) {
	if kv == nil || f == nil {
		return nil, fmt.Errorf("%w: store and fetcher are required", ErrInvalidOptions)
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}

	c := &CachedFetcher{
		store:        kv,
		fetcher:      f,
		metadataSink: metadataSink,
		options:      options,
	}
	if options.SingleFlight {
		c.group = &singleflight.Group{}
	}
	return c, nil
}

func (c *CachedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	count, err := c.store.Incr(ctx, c.CounterKey(url))
	if err != nil {
		return "", err
	}

	cached, found, err := c.store.Get(ctx, c.ResultKey(url))
	if err != nil {
		return "", err
	}
	if found {
		c.metadataSink.RecordLookup(url, metadata.LookupHit, count)
		return cached, nil
	}
	c.metadataSink.RecordLookup(url, metadata.LookupMiss, count)

	if c.group == nil {
		return c.fetchAndStore(ctx, url)
	}

	// the shared fetch outlives any single caller's cancellation; each
	// caller still stops waiting when its own context ends
	ch := c.group.DoChan(url, func() (interface{}, error) {
		return c.fetchAndStore(context.WithoutCancel(ctx), url)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *CachedFetcher) fetchAndStore(ctx context.Context, url string) (string, error) {
	text, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if err := c.store.SetEx(ctx, c.ResultKey(url), text, c.options.ResultTTL); err != nil {
		return "", err
	}
	return text, nil
}

// Count returns how many times Fetch was called for url, without
// counting this read.
func (c *CachedFetcher) Count(ctx context.Context, url string) (int64, error) {
	raw, found, err := c.store.Get(ctx, c.CounterKey(url))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCounter, raw)
	}
	return n, nil
}

// CounterKey is the store key holding the request counter for url.
// The URL is used byte for byte; no normalization happens.
func (c *CachedFetcher) CounterKey(url string) string {
	return c.options.CounterPrefix + url
}

// ResultKey is the store key holding the cached body for url.
func (c *CachedFetcher) ResultKey(url string) string {
	return c.options.ResultPrefix + url
}

func (c *CachedFetcher) Options() Options {
	return c.options
}
