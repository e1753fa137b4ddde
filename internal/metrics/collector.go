package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rohmanhakim/page-tracker/internal/metadata"
)

const namespace = "page_tracker"

// Collector is a metadata.MetadataSink that keeps Prometheus series.
// Combine it with a Recorder through metadata.Tee to get both logs and
// metrics.
type Collector struct {
	lookups       *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	fetchedBytes  prometheus.Counter
	errors        *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prometheus.BuildFQName(namespace, "", "lookups_total"),
				Help: "Requests served by the cached fetcher, by cache outcome.",
			},
			[]string{"outcome"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prometheus.BuildFQName(namespace, "", "fetches_total"),
				Help: "Outbound page fetches, by HTTP status code. Code 0 means no response.",
			},
			[]string{"code"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    prometheus.BuildFQName(namespace, "", "fetch_duration_seconds"),
				Help:    "Time spent fetching pages.",
				Buckets: prometheus.DefBuckets,
			},
		),
		fetchedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: prometheus.BuildFQName(namespace, "", "fetched_bytes_total"),
				Help: "Bytes of decoded page text fetched.",
			},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prometheus.BuildFQName(namespace, "", "errors_total"),
				Help: "Errors reported by package and cause.",
			},
			[]string{"package", "cause"},
		),
	}
}

// Register adds every series to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{
		c.lookups,
		c.fetches,
		c.fetchDuration,
		c.fetchedBytes,
		c.errors,
	} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	c.errors.WithLabelValues(packageName, cause.String()).Inc()
}

func (c *Collector) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	sizeByte uint64,
	contentHash string,
) {
	c.fetches.WithLabelValues(strconv.Itoa(httpStatus)).Inc()
	c.fetchDuration.Observe(duration.Seconds())
	c.fetchedBytes.Add(float64(sizeByte))
}

func (c *Collector) RecordLookup(url string, outcome metadata.LookupOutcome, count int64) {
	c.lookups.WithLabelValues(outcome.String()).Inc()
}
