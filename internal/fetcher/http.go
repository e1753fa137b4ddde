package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/rohmanhakim/page-tracker/internal/metadata"
	"github.com/rohmanhakim/page-tracker/pkg/hashutil"
	"github.com/rohmanhakim/page-tracker/pkg/limiter"
	"golang.org/x/net/html/charset"
)

/*
Responsibilities

- Perform one HTTP GET per call
- Apply the User-Agent header and the client timeout
- Classify failures
- Decode the body to UTF-8 text

Fetch Semantics

- Redirects are followed by net/http defaults
- Any status >= 400 is a failure; the body is discarded
- Nothing is retried here; callers decide on Retryable errors
- With a rate limiter, requests to one host are spaced out
- Every attempt is reported to the metadata sink
*/
type HTTPFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	userAgent    string
	rateLimiter  limiter.RateLimiter
}

func NewHTTPFetcher(metadataSink metadata.MetadataSink) *HTTPFetcher {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &HTTPFetcher{
		metadataSink: metadataSink,
		httpClient:   &http.Client{},
		userAgent:    "page-tracker",
	}
}

func (h *HTTPFetcher) Init(httpClient *http.Client, userAgent string) {
	if httpClient != nil {
		h.httpClient = httpClient
	}
	h.userAgent = userAgent
}

// SetRateLimiter enables per-host spacing. Nil disables it.
func (h *HTTPFetcher) SetRateLimiter(rateLimiter limiter.RateLimiter) {
	h.rateLimiter = rateLimiter
}

// NewHTTPClient builds the client used by HTTPFetcher. When httpCache is
// set, responses are revalidated with the origin following their
// Cache-Control and ETag headers, independently of the result cache.
func NewHTTPClient(timeout time.Duration, httpCache bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if httpCache {
		client.Transport = httpcache.NewMemoryCacheTransport()
	}
	return client
}

func (h *HTTPFetcher) Fetch(ctx context.Context, fetchUrl string) (string, error) {
	callerMethod := "HTTPFetcher.Fetch"
	startTime := time.Now()

	text, meta, err := h.performFetch(ctx, fetchUrl)

	var contentHash string
	if err == nil {
		contentHash = hashutil.ContentHash(text)
	}
	h.metadataSink.RecordFetch(
		fetchUrl,
		meta.statusCode,
		time.Since(startTime),
		meta.contentType,
		uint64(len(text)),
		contentHash,
	)

	if err != nil {
		h.recordFetchError(callerMethod, fetchUrl, err)
		return "", err
	}
	return text, nil
}

type responseMeta struct {
	statusCode  int
	contentType string
}

func (h *HTTPFetcher) performFetch(ctx context.Context, fetchUrl string) (string, responseMeta, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl, nil)
	if err != nil {
		return "", responseMeta{}, &FetchError{
			Message: fmt.Sprintf("failed to create request: %v", err),
			Cause:   ErrCauseInvalidRequest,
			Err:     err,
		}
	}
	req.Header.Set("User-Agent", h.userAgent)

	if h.rateLimiter != nil && req.URL.Host != "" {
		if err := h.rateLimiter.Wait(ctx, req.URL.Host); err != nil {
			return "", responseMeta{}, classifyTransportError(err)
		}
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", responseMeta{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	meta := responseMeta{
		statusCode:  resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
	}

	if resp.StatusCode >= http.StatusBadRequest {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", meta, &FetchError{
			Message:    strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode),
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Cause:      ErrCauseHTTPStatus,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := readText(resp.Body, meta.contentType)
	if err != nil {
		return "", meta, &FetchError{
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Retryable:  true,
			Cause:      ErrCauseReadResponseBody,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	return body, meta, nil
}

// readText reads the whole body, then decodes it to UTF-8 using the
// charset declared in the Content-Type header, a <meta> tag, or content
// sniffing, in that order. Reading first keeps a truncated body from
// passing as a short one.
func readText(body io.Reader, contentType string) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	decoded, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return "", err
	}
	text, err := io.ReadAll(decoded)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

func classifyTransportError(err error) *FetchError {
	var urlErr *url.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout())

	switch {
	case timedOut:
		return &FetchError{
			Message:   fmt.Sprintf("request timed out: %v", err),
			Retryable: true,
			Cause:     ErrCauseTimeout,
			Err:       err,
		}
	case strings.Contains(err.Error(), "unsupported protocol scheme"),
		strings.Contains(err.Error(), "no Host in request URL"):
		return &FetchError{
			Message: err.Error(),
			Cause:   ErrCauseInvalidRequest,
			Err:     err,
		}
	case errors.Is(err, context.Canceled):
		return &FetchError{
			Message: "request cancelled",
			Cause:   ErrCauseNetworkFailure,
			Err:     err,
		}
	default:
		return &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
			Err:       err,
		}
	}
}

func (h *HTTPFetcher) recordFetchError(callerMethod string, fetchUrl string, err *FetchError) {
	attrs := []metadata.Attribute{
		metadata.NewAttr(metadata.AttrURL, fetchUrl),
	}
	if err.StatusCode != 0 {
		attrs = append(attrs, metadata.NewAttr(metadata.AttrHTTPStatus, strconv.Itoa(err.StatusCode)))
	}
	h.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		mapFetchErrorToMetadataCause(err),
		err.Error(),
		attrs,
	)
}
