package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/swim-eval-api/pkg/jobs"
)

// Progression outcomes recorded by RecordProgression.
const (
	ProgressionApplied  = "applied"
	ProgressionNoop     = "noop"
	ProgressionRejected = "rejected"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	evaluationWrites  *prometheus.CounterVec
	progressions      *prometheus.CounterVec
	txConflicts       prometheus.Counter
	analyticsDuration *prometheus.HistogramVec
	notifications     *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
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
		Help:    "Latency for cache lookups",
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

	evaluationWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evaluation_writes_total",
		Help: "Committed evaluation writes by operation",
	}, []string{"operation"})

	progressions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "level_progressions_total",
		Help: "Level progression attempts by outcome",
	}, []string{"outcome"})

	txConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evaluation_tx_conflicts_total",
		Help: "Evaluation transactions aborted by a concurrent writer",
	})

	analyticsDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evolution_analytics_duration_seconds",
		Help:    "Time spent computing evolution analytics",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "change_notifications_total",
		Help: "Change notifications by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		evaluationWrites, progressions, txConflicts, analyticsDuration, notifications, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		evaluationWrites:  evaluationWrites,
		progressions:      progressions,
		txConflicts:       txConflicts,
		analyticsDuration: analyticsDuration,
		notifications:     notifications,
	}
}

type queueStatsSource interface {
	Stats() jobs.Stats
}

// RegisterQueue exports the depth and lifetime counters of a background job queue,
// read from source at scrape time.
func (m *MetricsService) RegisterQueue(name string, source queueStatsSource) error {
	if m == nil || source == nil {
		return nil
	}
	labels := prometheus.Labels{"queue": name}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "job_queue_pending",
			Help:        "Jobs waiting in a background queue",
			ConstLabels: labels,
		}, func() float64 { return float64(source.Stats().Pending) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "job_queue_processed_total",
			Help:        "Jobs completed by a background queue",
			ConstLabels: labels,
		}, func() float64 { return float64(source.Stats().Processed) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "job_queue_retried_total",
			Help:        "Job retries scheduled by a background queue",
			ConstLabels: labels,
		}, func() float64 { return float64(source.Stats().Retried) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "job_queue_dropped_total",
			Help:        "Jobs given up on by a background queue",
			ConstLabels: labels,
		}, func() float64 { return float64(source.Stats().Dropped) }),
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
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

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
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

// RecordEvaluationWrite counts a committed create, update or delete.
func (m *MetricsService) RecordEvaluationWrite(operation string) {
	if m == nil {
		return
	}
	m.evaluationWrites.WithLabelValues(operation).Inc()
}

// RecordProgression counts a state machine outcome.
func (m *MetricsService) RecordProgression(outcome string) {
	if m == nil {
		return
	}
	m.progressions.WithLabelValues(outcome).Inc()
}

// RecordTxConflict counts a transaction lost to a concurrent writer.
func (m *MetricsService) RecordTxConflict() {
	if m == nil {
		return
	}
	m.txConflicts.Inc()
}

// ObserveAnalytics records how long an analytics payload took to compute.
func (m *MetricsService) ObserveAnalytics(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.analyticsDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordNotification counts a notification delivery result.
func (m *MetricsService) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
