// Package metrics provides Prometheus metrics for the voicebox feedback pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	latencyBuckets   []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline
	feedbackIngested  prometheus.Counter
	transcriptions    *prometheus.CounterVec
	consolidations    *prometheus.CounterVec
	scoringRuns       prometheus.Counter
	scoringErrors     prometheus.Counter
	scoringLatency    prometheus.Histogram
	synthesisOutcomes *prometheus.CounterVec
	oracleLatency     *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      *prometheus.CounterVec
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueRequeued      prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency *prometheus.HistogramVec
	workerErrors            *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "voicebox",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		latencyBuckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.feedbackIngested = m.counter("feedback_ingested_total", "Voice feedback recordings accepted for processing")
	m.transcriptions = m.counterVec("transcriptions_total", "Transcription attempts by outcome", "outcome")
	m.consolidations = m.counterVec("consolidations_total", "Consolidation decisions by action", "action")
	m.scoringRuns = m.counter("scoring_runs_total", "Ticket scoring runs that persisted a score card")
	m.scoringErrors = m.counter("scoring_errors_total", "Ticket scoring runs that failed")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "End-to-end ticket scoring latency in milliseconds", m.latencyBuckets)
	m.synthesisOutcomes = m.counterVec("synthesis_candidates_total", "Synthesized candidates by result", "result")
	m.oracleLatency = m.histogramVec("oracle_latency_milliseconds", "Model call latency in milliseconds", m.latencyBuckets, "oracle", "outcome")

	m.queueSize = m.gauge("queue_size", "Current number of pending tasks")
	m.queueCapacity = m.gauge("queue_capacity", "Configured task queue capacity")
	m.queueEnqueued = m.counterVec("queue_enqueued_total", "Tasks enqueued by kind", "kind")
	m.queueDequeued = m.counter("queue_dequeued_total", "Tasks handed to workers")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Tasks rejected at enqueue")
	m.queueRequeued = m.counter("queue_requeued_total", "Unacknowledged tasks moved back to the pending list")

	m.workerCount = m.gauge("worker_count", "Current number of running workers")
	m.workerProcessingLatency = m.histogramVec("worker_processing_latency_milliseconds", "Task handling latency in milliseconds", m.latencyBuckets, "kind")
	m.workerErrors = m.counterVec("worker_errors_total", "Task handler failures by kind", "kind")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")
}

// RecordFeedbackIngested counts an accepted recording.
func RecordFeedbackIngested() { globalManager.feedbackIngested.Inc() }

// RecordTranscription counts a transcription attempt with outcome completed, failed or skipped.
func RecordTranscription(outcome string) {
	globalManager.transcriptions.WithLabelValues(outcome).Inc()
}

// RecordConsolidation counts a consolidation decision (matched, created, skipped).
func RecordConsolidation(action string) {
	globalManager.consolidations.WithLabelValues(action).Inc()
}

// RecordScoringRun counts a persisted score card and its latency.
func RecordScoringRun(latencyMs float64) {
	globalManager.scoringRuns.Inc()
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordScoringError increments the scoring errors counter.
func RecordScoringError() { globalManager.scoringErrors.Inc() }

// RecordSynthesis counts synthesized candidates that were accepted or rejected.
func RecordSynthesis(accepted, rejected int) {
	globalManager.synthesisOutcomes.WithLabelValues("accepted").Add(float64(accepted))
	globalManager.synthesisOutcomes.WithLabelValues("rejected").Add(float64(rejected))
}

// RecordOracleLatency observes one model call.
func RecordOracleLatency(oracle, outcome string, latencyMs float64) {
	globalManager.oracleLatency.WithLabelValues(oracle, outcome).Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an enqueued task.
func RecordQueueEnqueue(kind string) { globalManager.queueEnqueued.WithLabelValues(kind).Inc() }

// RecordQueueDequeue counts a dequeued task.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueRequeue counts tasks recovered from the processing list.
func RecordQueueRequeue(n int) { globalManager.queueRequeued.Add(float64(n)) }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records task handling latency.
func RecordWorkerProcessingLatency(kind string, latencyMs float64) {
	globalManager.workerProcessingLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordWorkerError counts a failed task.
func RecordWorkerError(kind string) { globalManager.workerErrors.WithLabelValues(kind).Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
