// Package metrics provides Prometheus metrics for the pitwall prediction service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Sessions
	sessionsCreated prometheus.Counter
	sessionsClosed  prometheus.Counter
	sessionsActive  prometheus.Gauge
	sessionsTotal   prometheus.Gauge

	// Predictions
	predictionsRecorded  prometheus.Counter
	predictionsRejected  *prometheus.CounterVec
	duplicateSubmissions prometheus.Counter

	// Preprocessing and inference
	preprocessImputations *prometheus.CounterVec
	inferenceLatency      *prometheus.HistogramVec
	inferenceErrors       *prometheus.CounterVec
	modelsLoaded          prometheus.Gauge

	// Narrative and story
	narrativeEvents *prometheus.CounterVec
	storyRequests   *prometheus.CounterVec
	providerLatency prometheus.Histogram
	providerErrors  *prometheus.CounterVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "pitwall",
		subsystem:        "predictor",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.sessionsCreated = m.counter("sessions_created_total", "Total number of sessions created")
	m.sessionsClosed = m.counter("sessions_closed_total", "Total number of sessions transitioned to closed")
	m.sessionsActive = m.gauge("sessions_active", "Sessions currently accepting predictions")
	m.sessionsTotal = m.gauge("sessions_total", "Sessions held in memory (active and closed)")

	m.predictionsRecorded = m.counter("predictions_recorded_total", "Prediction records appended to session history")
	m.predictionsRejected = m.counterVec("predictions_rejected_total", "Prediction submissions rejected by reason", "reason")
	m.duplicateSubmissions = m.counter("duplicate_submissions_total", "Submissions acknowledged as duplicates of an earlier request id")

	m.preprocessImputations = m.counterVec("preprocess_imputations_total", "Missing telemetry fields resolved by imputation", "strategy")
	m.inferenceLatency = m.histogramVec("inference_latency_milliseconds", "Per-task inference latency in milliseconds", "task")
	m.inferenceErrors = m.counterVec("inference_errors_total", "Inference failures by task and error kind", "task", "kind")
	m.modelsLoaded = m.gauge("models_loaded", "1 when every model artifact loaded, 0 when the engine is degraded")

	m.narrativeEvents = m.counterVec("narrative_events_total", "Race events derived from session history by kind", "kind")
	m.storyRequests = m.counterVec("story_requests_total", "Composition requests by task and outcome", "task", "outcome")
	m.providerLatency = m.histogram("provider_latency_milliseconds", "Generative-text provider call latency in milliseconds",
		[]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
	m.providerErrors = m.counterVec("provider_errors_total", "Generative-text provider failures by reason", "reason")

	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Session store mutation latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Session store read latency in milliseconds", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordSessionCreated increments the created sessions counter.
func RecordSessionCreated() { globalManager.sessionsCreated.Inc() }

// RecordSessionClosed increments the closed sessions counter.
func RecordSessionClosed() { globalManager.sessionsClosed.Inc() }

// UpdateSessionCounts sets the active and total session gauges.
func UpdateSessionCounts(active, total int) {
	globalManager.sessionsActive.Set(float64(active))
	globalManager.sessionsTotal.Set(float64(total))
}

// RecordPredictionRecorded increments the appended prediction counter.
func RecordPredictionRecorded() { globalManager.predictionsRecorded.Inc() }

// RecordPredictionRejected counts a rejected submission by reason.
func RecordPredictionRejected(reason string) {
	globalManager.predictionsRejected.WithLabelValues(reason).Inc()
}

// RecordDuplicateSubmission counts a submission short-circuited by its request id.
func RecordDuplicateSubmission() { globalManager.duplicateSubmissions.Inc() }

// RecordImputation counts one imputed field.
func RecordImputation(strategy string) {
	globalManager.preprocessImputations.WithLabelValues(strategy).Inc()
}

// RecordInferenceLatency records one predictor call in milliseconds.
func RecordInferenceLatency(task string, latencyMs float64) {
	globalManager.inferenceLatency.WithLabelValues(task).Observe(latencyMs)
}

// RecordInferenceError counts a failed predictor call.
func RecordInferenceError(task, kind string) {
	globalManager.inferenceErrors.WithLabelValues(task, kind).Inc()
}

// UpdateModelsLoaded reports whether the inference engine is serving.
func UpdateModelsLoaded(ok bool) {
	if ok {
		globalManager.modelsLoaded.Set(1)
		return
	}
	globalManager.modelsLoaded.Set(0)
}

// RecordNarrativeEvent counts a derived race event.
func RecordNarrativeEvent(kind string) {
	globalManager.narrativeEvents.WithLabelValues(kind).Inc()
}

// RecordStoryRequest counts a composition by task and outcome (generated, fallback).
func RecordStoryRequest(task, outcome string) {
	globalManager.storyRequests.WithLabelValues(task, outcome).Inc()
}

// RecordProviderLatency records a provider round trip in milliseconds.
func RecordProviderLatency(latencyMs float64) {
	globalManager.providerLatency.Observe(latencyMs)
}

// RecordProviderError counts a provider failure by reason.
func RecordProviderError(reason string) {
	globalManager.providerErrors.WithLabelValues(reason).Inc()
}

// RecordRepositoryUpdateLatency records session store mutation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records session store read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
