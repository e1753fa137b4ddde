package fetcher_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rohmanhakim/page-tracker/internal/fetcher"
	"github.com/rohmanhakim/page-tracker/internal/metadata"
	"github.com/rohmanhakim/page-tracker/pkg/failure"
	"github.com/rohmanhakim/page-tracker/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMetadataSink is a test double for metadata.MetadataSink
type mockMetadataSink struct {
	mu          sync.Mutex
	fetchEvents []fetchEvent
	errorEvents []errorEvent
}

type fetchEvent struct {
	fetchUrl    string
	httpStatus  int
	duration    time.Duration
	contentType string
	sizeByte    uint64
	contentHash string
}

type errorEvent struct {
	packageName string
	action      string
	cause       metadata.ErrorCause
	details     string
	attrs       []metadata.Attribute
}

func (m *mockMetadataSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	sizeByte uint64,
	contentHash string,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchEvents = append(m.fetchEvents, fetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		sizeByte:    sizeByte,
		contentHash: contentHash,
	})
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorEvents = append(m.errorEvents, errorEvent{
		packageName: packageName,
		action:      action,
		cause:       cause,
		details:     details,
		attrs:       attrs,
	})
}

func (m *mockMetadataSink) RecordLookup(url string, outcome metadata.LookupOutcome, count int64) {}

func newFetcher(sink metadata.MetadataSink) *fetcher.HTTPFetcher {
	f := fetcher.NewHTTPFetcher(sink)
	f.Init(&http.Client{}, "test-user-agent")
	return f
}

func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello World</body></html>"))
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := newFetcher(sink)

	text, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>Hello World</body></html>", text)

	require.Len(t, sink.fetchEvents, 1)
	evt := sink.fetchEvents[0]
	assert.Equal(t, server.URL, evt.fetchUrl)
	assert.Equal(t, http.StatusOK, evt.httpStatus)
	assert.Equal(t, "text/html; charset=utf-8", evt.contentType)
	assert.Equal(t, uint64(len(text)), evt.sizeByte)
	assert.Equal(t, hashutil.ContentHash(text), evt.contentHash)
	assert.Empty(t, sink.errorEvents)
}

func TestHTTPFetcher_Fetch_NonHTMLIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	text, err := newFetcher(&mockMetadataSink{}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestHTTPFetcher_Fetch_SetsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	_, err := newFetcher(nil).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "test-user-agent", got)
}

func TestHTTPFetcher_Fetch_DecodesCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		// "café" in latin-1
		w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer server.Close()

	text, err := newFetcher(nil).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestHTTPFetcher_Fetch_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved here"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	text, err := newFetcher(nil).Fetch(context.Background(), server.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, "moved here", text)
}

func TestHTTPFetcher_Fetch_HTTPStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"404 not found", http.StatusNotFound, false},
		{"403 forbidden", http.StatusForbidden, false},
		{"429 too many requests", http.StatusTooManyRequests, true},
		{"500 internal server error", http.StatusInternalServerError, true},
		{"503 unavailable", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte("error page"))
			}))
			defer server.Close()

			sink := &mockMetadataSink{}
			text, err := newFetcher(sink).Fetch(context.Background(), server.URL)

			assert.Empty(t, text)
			var fetchErr *fetcher.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, fetcher.ErrCauseHTTPStatus, fetchErr.Cause)
			assert.Equal(t, tt.status, fetchErr.StatusCode)
			assert.Equal(t, tt.retryable, fetchErr.IsRetryable())
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "fetcher must not retry")

			require.Len(t, sink.fetchEvents, 1)
			assert.Equal(t, tt.status, sink.fetchEvents[0].httpStatus)
			require.Len(t, sink.errorEvents, 1)
			assert.Equal(t, metadata.CauseRemoteRejected, sink.errorEvents[0].cause)
			assert.Equal(t, "fetcher", sink.errorEvents[0].packageName)
			assert.Equal(t, "HTTPFetcher.Fetch", sink.errorEvents[0].action)
		})
	}
}

func TestHTTPFetcher_Fetch_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	sink := &mockMetadataSink{}
	_, err = newFetcher(sink).Fetch(context.Background(), "http://"+addr)

	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, fetcher.ErrCauseNetworkFailure, fetchErr.Cause)
	assert.True(t, fetchErr.IsRetryable())
	assert.Equal(t, failure.SeverityRecoverable, fetchErr.Severity())

	require.Len(t, sink.fetchEvents, 1)
	assert.Equal(t, 0, sink.fetchEvents[0].httpStatus)
	require.Len(t, sink.errorEvents, 1)
	assert.Equal(t, metadata.CauseNetworkFailure, sink.errorEvents[0].cause)
}

func TestHTTPFetcher_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := fetcher.NewHTTPFetcher(nil)
	f.Init(fetcher.NewHTTPClient(50*time.Millisecond, false), "ua")

	_, err := f.Fetch(context.Background(), server.URL)
	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, fetcher.ErrCauseTimeout, fetchErr.Cause)
}

func TestHTTPFetcher_Fetch_InvalidURL(t *testing.T) {
	tests := []string{
		"://missing-scheme",
		"ftp://example.com/file",
		"",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := newFetcher(nil).Fetch(context.Background(), raw)
			var fetchErr *fetcher.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, fetcher.ErrCauseInvalidRequest, fetchErr.Cause)
			assert.False(t, fetchErr.IsRetryable())
			assert.Equal(t, failure.SeverityFatal, fetchErr.Severity())
		})
	}
}

func TestHTTPFetcher_Fetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFetcher(nil).Fetch(ctx, server.URL)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHTTPFetcher_Fetch_ReadResponseBodyError(t *testing.T) {
	// The handler hijacks the connection and closes it after sending
	// only part of the declared body.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("response writer does not support hijacking")
		}
		conn, bufrw, err := hj.Hijack()
		if err != nil {
			t.Fatal("hijack failed:", err)
		}
		defer conn.Close()

		headers := "HTTP/1.1 200 OK\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"Content-Length: 100\r\n" +
			"\r\n"
		bufrw.WriteString(headers)
		bufrw.WriteString("partial")
		bufrw.Flush()
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	_, err := newFetcher(sink).Fetch(context.Background(), server.URL)

	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, fetcher.ErrCauseReadResponseBody, fetchErr.Cause)
	assert.Equal(t, http.StatusOK, fetchErr.StatusCode)
	require.Len(t, sink.errorEvents, 1)
	assert.Equal(t, metadata.CauseNetworkFailure, sink.errorEvents[0].cause)
}

func TestHTTPFetcher_HTTPCacheRevalidates(t *testing.T) {
	var hits, notModified int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "no-cache")
		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&notModified, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte("versioned body"))
	}))
	defer server.Close()

	f := fetcher.NewHTTPFetcher(nil)
	f.Init(fetcher.NewHTTPClient(time.Second, true), "ua")

	for i := 0; i < 2; i++ {
		text, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "versioned body", text)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&notModified))
}

func TestFetcherFunc(t *testing.T) {
	var f fetcher.Fetcher = fetcher.FetcherFunc(func(ctx context.Context, url string) (string, error) {
		return "stub:" + url, nil
	})
	text, err := f.Fetch(context.Background(), "http://x")
	require.NoError(t, err)
	assert.Equal(t, "stub:http://x", text)
}

func TestFetchError_Error(t *testing.T) {
	err := &fetcher.FetchError{Message: "404 Not Found", Cause: fetcher.ErrCauseHTTPStatus}
	assert.Equal(t, "fetcher error: unsuccessful http status: 404 Not Found", err.Error())

	bare := &fetcher.FetchError{Cause: fetcher.ErrCauseTimeout}
	assert.Equal(t, "fetcher error: timeout", bare.Error())
}

// recordingLimiter is a test double for limiter.RateLimiter
type recordingLimiter struct {
	mu      sync.Mutex
	waitErr error
	waits   []string
}

func (r *recordingLimiter) Wait(ctx context.Context, host string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, host)
	return r.waitErr
}

func TestHTTPFetcher_RateLimiterWaitsPerHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rl := &recordingLimiter{}
	f := newFetcher(nil)
	f.SetRateLimiter(rl)

	_, err := f.Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), srv.URL+"/b")
	require.NoError(t, err)

	host := srv.Listener.Addr().String()
	assert.Equal(t, []string{host, host}, rl.waits)
}

func TestHTTPFetcher_RateLimiterSkippedForInvalidURL(t *testing.T) {
	rl := &recordingLimiter{}
	f := newFetcher(nil)
	f.SetRateLimiter(rl)

	_, err := f.Fetch(context.Background(), "ftp:///nohost")
	require.Error(t, err)
	assert.Empty(t, rl.waits)
}

func TestHTTPFetcher_RateLimiterWaitCancelled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	sink := &mockMetadataSink{}
	f := newFetcher(sink)
	f.SetRateLimiter(&recordingLimiter{waitErr: context.Canceled})

	_, err := f.Fetch(context.Background(), srv.URL)

	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, fetcher.ErrCauseNetworkFailure, fetchErr.Cause)
	assert.False(t, fetchErr.IsRetryable())
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	assert.Len(t, sink.errorEvents, 1)
}
