package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rohmanhakim/page-tracker/internal/fetcher"
)

// Tracker is the part of tracker.CachedFetcher the HTTP service needs.
type Tracker interface {
	Fetch(ctx context.Context, url string) (string, error)
	Count(ctx context.Context, url string) (int64, error)
}

const indexPage = `<html>
<head><title>page-tracker</title></head>
<body>
<h1>page-tracker</h1>
<p><a href="/fetch?url=https://example.com">/fetch?url=...</a></p>
<p><a href="/count?url=https://example.com">/count?url=...</a></p>
<p><a href="/metrics">/metrics</a></p>
</body>
</html>`

type countResponse struct {
	URL   string `json:"url"`
	Count int64  `json:"count"`
}

type handler struct {
	tracker Tracker
	logger  log.Interface
}

// NewHandler routes:
//
//	GET /fetch?url=U  page text through the cached fetcher
//	GET /count?url=U  {"url":U,"count":N}
//	GET /metrics      prometheus exposition of gatherer
//	GET /             index
//
// Fetch failures answer 502, store failures 503.
func NewHandler(t Tracker, gatherer prometheus.Gatherer, logger log.Interface) http.Handler {
	if logger == nil {
		logger = log.Log
	}
	h := &handler{tracker: t, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /fetch", h.fetch)
	mux.HandleFunc("GET /count", h.count)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexPage))
	})
	return mux
}

func (h *handler) fetch(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	text, err := h.tracker.Fetch(r.Context(), target)
	if err != nil {
		h.fail(w, target, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (h *handler) count(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	n, err := h.tracker.Count(r.Context(), target)
	if err != nil {
		h.fail(w, target, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(countResponse{URL: target, Count: n})
}

func (h *handler) fail(w http.ResponseWriter, target string, err error) {
	status := http.StatusServiceUnavailable
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		status = http.StatusBadGateway
	}
	h.logger.WithError(err).WithField("url", target).Warn("request failed")
	http.Error(w, err.Error(), status)
}

// Run serves handler on addr until ctx is done, then shuts down,
// giving in-flight requests up to five seconds.
func Run(ctx context.Context, addr string, handler http.Handler, logger log.Interface) error {
	if logger == nil {
		logger = log.Log
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
