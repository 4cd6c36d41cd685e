package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/san2804/finguard-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	submitDuration     prometheus.Histogram
	submitsTotal       *prometheus.CounterVec
	blobUploads        *prometheus.CounterVec
	snapshotsApplied   *prometheus.CounterVec
	staleSnapshots     *prometheus.CounterVec
	subscriptionErrors *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		submitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finguard_submit_duration_seconds",
				Help:    "Duration of transaction submits.",
				Buckets: prometheus.DefBuckets,
			},
		),
		submitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finguard_submits_total",
				Help: "Total transaction submits by outcome.",
			},
			[]string{"status"},
		),
		blobUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finguard_blob_uploads_total",
				Help: "Total receipt uploads by outcome.",
			},
			[]string{"status"},
		),
		snapshotsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finguard_snapshots_applied_total",
				Help: "Live snapshots recomputed and published.",
			},
			[]string{"scope"},
		),
		staleSnapshots: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finguard_snapshots_stale_total",
				Help: "Live snapshots dropped for stale sequence numbers.",
			},
			[]string{"scope"},
		),
		subscriptionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finguard_subscription_errors_total",
				Help: "Listener-level errors absorbed by the live controller.",
			},
			[]string{"scope"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finguard_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finguard_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordSubmitDuration records the duration of one submit.
func (m *Metrics) RecordSubmitDuration(d time.Duration) {
	m.submitDuration.Observe(d.Seconds())
}

// IncrSubmit increments the submit counter with an outcome label.
func (m *Metrics) IncrSubmit(status string) {
	m.submitsTotal.WithLabelValues(status).Inc()
}

// IncrBlobUpload increments the upload counter with an outcome label.
func (m *Metrics) IncrBlobUpload(status string) {
	m.blobUploads.WithLabelValues(status).Inc()
}

// IncrSnapshotApplied increments the applied-snapshot counter.
func (m *Metrics) IncrSnapshotApplied(scope string) {
	m.snapshotsApplied.WithLabelValues(scope).Inc()
}

// IncrStaleSnapshot increments the dropped-stale-snapshot counter.
func (m *Metrics) IncrStaleSnapshot(scope string) {
	m.staleSnapshots.WithLabelValues(scope).Inc()
}

// IncrSubscriptionError increments the absorbed listener error counter.
func (m *Metrics) IncrSubscriptionError(scope string) {
	m.subscriptionErrors.WithLabelValues(scope).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetSummarySnapshot returns a snapshot of the core metrics suitable for
// the GET /v1/metrics/summary endpoint.
func (m *Metrics) GetSummarySnapshot() *domain.SummaryMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	submits := getCounterValue(m.submitsTotal, "ok") +
		getCounterValue(m.submitsTotal, "invalid") +
		getCounterValue(m.submitsTotal, "unauthenticated") +
		getCounterValue(m.submitsTotal, "upload_failed") +
		getCounterValue(m.submitsTotal, "persist_failed")
	submitErrors := submits - getCounterValue(m.submitsTotal, "ok")

	applied := getCounterValue(m.snapshotsApplied, string(domain.ScopeCurrentMonth)) +
		getCounterValue(m.snapshotsApplied, "year")
	stale := getCounterValue(m.staleSnapshots, string(domain.ScopeCurrentMonth)) +
		getCounterValue(m.staleSnapshots, "year")
	subErrors := getCounterValue(m.subscriptionErrors, string(domain.ScopeCurrentMonth)) +
		getCounterValue(m.subscriptionErrors, "year")

	hits := getCounterValue(m.cacheHits, "summary")
	misses := getCounterValue(m.cacheMisses, "summary")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.SummaryMetrics{
		SubmitsTotal:       int64(submits),
		SubmitErrors:       int64(submitErrors),
		SnapshotsApplied:   int64(applied),
		StaleSnapshots:     int64(stale),
		SubscriptionErrors: int64(subErrors),
		CacheHitRate:       hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
