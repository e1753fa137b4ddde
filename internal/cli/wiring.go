package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rohmanhakim/page-tracker/internal/config"
	"github.com/rohmanhakim/page-tracker/internal/fetcher"
	tlog "github.com/rohmanhakim/page-tracker/internal/log"
	"github.com/rohmanhakim/page-tracker/internal/metadata"
	"github.com/rohmanhakim/page-tracker/internal/metrics"
	"github.com/rohmanhakim/page-tracker/internal/store"
	"github.com/rohmanhakim/page-tracker/internal/tracker"
	"github.com/rohmanhakim/page-tracker/pkg/limiter"
	"github.com/rohmanhakim/page-tracker/pkg/retry"
	"github.com/rohmanhakim/page-tracker/pkg/timeutil"
)

// app holds the process-wide handles. The store is opened once and
// closed when the command returns.
type app struct {
	cfg      config.Config
	logger   log.Interface
	store    store.Store
	tracker  *tracker.CachedFetcher
	registry *prometheus.Registry
}

type pinger interface {
	Ping(ctx context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*app, error) {
	logger, err := tlog.InitLogger(cfg.LogLevel(), logOut)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector()
	if err := collector.Register(registry); err != nil {
		return nil, err
	}
	sink := metadata.Tee{metadata.NewRecorder(logger), collector}

	kv, err := openStore(ctx, cfg, sink)
	if err != nil {
		return nil, err
	}

	httpFetcher := fetcher.NewHTTPFetcher(sink)
	httpFetcher.Init(fetcher.NewHTTPClient(cfg.Timeout(), cfg.HTTPCache()), cfg.UserAgent())
	if cfg.HostDelay() > 0 {
		httpFetcher.SetRateLimiter(limiter.NewConcurrentRateLimiter(
			cfg.HostDelay(),
			cfg.HostDelay()/10,
			time.Now().UnixNano(),
		))
	}

	cachedFetcher, err := tracker.NewCachedFetcher(kv, httpFetcher, sink, cfg.TrackerOptions())
	if err != nil {
		kv.Close()
		return nil, err
	}

	logger.WithFields(log.Fields{
		"store":         string(cfg.Store()),
		"result_ttl":    cfg.ResultTTL().String(),
		"single_flight": cfg.SingleFlight(),
		"host_delay":    cfg.HostDelay().String(),
	}).Debug("initialized")

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    kv,
		tracker:  cachedFetcher,
		registry: registry,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config, sink metadata.MetadataSink) (store.Store, error) {
	var kv store.Store
	switch cfg.Store() {
	case config.StoreMemory:
		return store.NewMemoryStore(sink), nil
	case config.StoreRedis:
		kv = store.NewRedisStore(sink, store.RedisParam{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword(),
			DB:       cfg.RedisDB(),
		})
	case config.StoreMemcache:
		kv = store.NewMemcacheStore(sink, cfg.MemcacheServers()...)
	default:
		return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store())
	}

	if p, ok := kv.(pinger); ok {
		if err := ping(ctx, p, cfg); err != nil {
			kv.Close()
			return nil, fmt.Errorf("connecting to %s store: %w", cfg.Store(), err)
		}
	}
	return kv, nil
}

// ping checks the store connection, retrying while the store reports
// itself unavailable, e.g. a Redis container still starting.
func ping(ctx context.Context, p pinger, cfg config.Config) error {
	retryParam := retry.NewRetryParam(
		cfg.ConnectAttempts(),
		cfg.ConnectDelay()/4,
		time.Now().UnixNano(),
		timeutil.NewBackoffParam(cfg.ConnectDelay(), 2.0, 30*time.Second),
	)
	_, err := retry.Retry(ctx, retryParam, func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, p.Ping(pingCtx)
	})
	return err
}

func (a *app) Close() error {
	return a.store.Close()
}
