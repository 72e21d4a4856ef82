package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// Step transition outcomes recorded by ObserveStepTransition.
const (
	StepOutcomeAdvanced = "advanced"
	StepOutcomeRejected = "rejected"
	StepOutcomeBack     = "back"
	StepOutcomeJump     = "jump"
	StepOutcomeLocked   = "locked"
)

// MetricsService wraps a private Prometheus registry and keeps lightweight
// counters for the JSON summary.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	stepTransitions *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	staleLookups    *prometheus.CounterVec
	sessionsSwept   prometheus.Counter

	activeWizards func() int

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	submissionOK         uint64
	submissionFailed     uint64
	staleLookupCount     uint64
}

// NewMetricsService registers the collectors. activeWizards, when set, backs
// the live session gauge.
func NewMetricsService(activeWizards func() int) *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	stepTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wizard_step_transitions_total",
		Help: "Wizard navigation attempts by step and outcome",
	}, []string{"step", "outcome"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wizard_submissions_total",
		Help: "Wizard submissions by outcome",
	}, []string{"outcome"})

	staleLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wizard_stale_lookups_total",
		Help: "Catalog lookups discarded because the selection changed meanwhile",
	}, []string{"lookup"})

	sessionsSwept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wizard_sessions_swept_total",
		Help: "Idle wizard sessions removed by the sweeper",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dbQueryDuration, stepTransitions, submissions, staleLookups, sessionsSwept, goroutines)

	if activeWizards != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "wizard_sessions_active",
			Help: "Wizard sessions currently held in memory",
		}, func() float64 {
			return float64(activeWizards())
		}))
	}

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		stepTransitions: stepTransitions,
		submissions:     submissions,
		staleLookups:    staleLookups,
		sessionsSwept:   sessionsSwept,
		activeWizards:   activeWizards,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveStepTransition counts a navigation attempt leaving step.
func (m *MetricsService) ObserveStepTransition(step models.WizardStep, outcome string) {
	if m == nil {
		return
	}
	m.stepTransitions.WithLabelValues(step.String(), outcome).Inc()
}

// ObserveSubmission counts a submission by outcome ("success" or a failure kind).
func (m *MetricsService) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		atomic.AddUint64(&m.submissionOK, 1)
	} else {
		atomic.AddUint64(&m.submissionFailed, 1)
	}
}

// ObserveStaleLookup counts a catalog result dropped because its selection tag expired.
func (m *MetricsService) ObserveStaleLookup(lookup string) {
	if m == nil {
		return
	}
	m.staleLookups.WithLabelValues(lookup).Inc()
	atomic.AddUint64(&m.staleLookupCount, 1)
}

// ObserveSweep counts sessions removed by the idle sweeper.
func (m *MetricsService) ObserveSweep(removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(removed))
}

// Snapshot returns aggregated metrics for the JSON summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}
	var active int
	if m.activeWizards != nil {
		active = m.activeWizards()
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		ActiveWizards:            active,
		SubmissionsSucceeded:     atomic.LoadUint64(&m.submissionOK),
		SubmissionsFailed:        atomic.LoadUint64(&m.submissionFailed),
		StaleLookupsDiscarded:    atomic.LoadUint64(&m.staleLookupCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
