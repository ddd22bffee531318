// Package metrics provides Prometheus metrics for the Chirp karaoke server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the Chirp server.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64 // milliseconds
	scoreBuckets    []float64
	refreshInterval time.Duration
	registry        prometheus.Registerer

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Listen Session Metrics - live transcription sockets
	listenSessionsActive  prometheus.Gauge
	listenSessionsTotal   *prometheus.CounterVec
	listenSessionDuration prometheus.Histogram
	audioBytes            prometheus.Counter
	audioFrames           prometheus.Counter
	audioFramesDropped    prometheus.Counter
	transcriptEvents      *prometheus.CounterVec

	// Speech Backend Metrics
	recognizeLatency  prometheus.Histogram
	ttsRequests       *prometheus.CounterVec
	ttsCacheHits      prometheus.Counter
	ttsCacheMisses    prometheus.Counter
	ttsLatency        prometheus.Histogram
	translateRequests *prometheus.CounterVec

	// Game Metrics
	scores               *prometheus.HistogramVec
	phraseScores         prometheus.Histogram
	highScoreSubmissions *prometheus.CounterVec
	storeLatency         *prometheus.HistogramVec

	// Audio Queue Metrics
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Pool Metrics
	workersActive    prometheus.Gauge
	workerJobs       *prometheus.CounterVec
	workerJobLatency prometheus.Histogram

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "chirp",
		subsystem:       "server",
		latencyBuckets:  prometheus.ExponentialBuckets(1, 2, 14),
		scoreBuckets:    prometheus.LinearBuckets(0, 10, 11),
		refreshInterval: defaultRefreshInterval,
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval returns how often gauges sampled by the caller should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.latencyBuckets, "endpoint", "method", "status_code")

	m.listenSessionsActive = m.gauge("listen_sessions_active", "Number of open transcription sockets")
	m.listenSessionsTotal = m.counterVec("listen_sessions_total",
		"Total number of transcription sockets by language", "language")
	m.listenSessionDuration = m.histogram("listen_session_duration_seconds",
		"Duration of transcription sessions in seconds", []float64{1, 5, 10, 15, 20, 30, 60, 120, 300})
	m.audioBytes = m.counter("audio_bytes_total", "Total PCM bytes received from clients")
	m.audioFrames = m.counter("audio_frames_total", "Total PCM frames received from clients")
	m.audioFramesDropped = m.counter("audio_frames_dropped_total", "PCM frames dropped because the session queue was full")
	m.transcriptEvents = m.counterVec("transcript_events_total",
		"Transcript events sent to clients", "kind")

	m.recognizeLatency = m.histogram("recognize_latency_milliseconds",
		"Latency of speech recognition calls in milliseconds", []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000})
	m.ttsRequests = m.counterVec("tts_requests_total", "Speech synthesis requests by language", "language")
	m.ttsCacheHits = m.counter("tts_cache_hits_total", "Speech synthesis requests served from the disk cache")
	m.ttsCacheMisses = m.counter("tts_cache_misses_total", "Speech synthesis requests sent to the backend")
	m.ttsLatency = m.histogram("tts_latency_milliseconds",
		"Latency of speech synthesis backend calls in milliseconds", []float64{50, 100, 250, 500, 1000, 2000, 5000})
	m.translateRequests = m.counterVec("translate_requests_total", "Translation requests by source language", "source_language")

	m.scores = m.histogramVec("scores", "Distribution of singing scores by method", m.scoreBuckets, "method")
	m.phraseScores = m.histogram("phrase_scores", "Distribution of language-learning round scores", m.scoreBuckets)
	m.highScoreSubmissions = m.counterVec("highscore_submissions_total",
		"High-score submissions by board and outcome", "board", "outcome")
	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"High-score store operation latency in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100}, "operation")

	m.queueCapacity = m.gauge("audio_queue_capacity", "Capacity of the most recently created audio queue")
	m.queueUtilization = m.gauge("audio_queue_utilization_ratio", "Fill ratio of the most recently used audio queue")
	m.queueEnqueueRate = m.counter("audio_queue_enqueued_total", "Total audio chunks enqueued")
	m.queueDequeueRate = m.counter("audio_queue_dequeued_total", "Total audio chunks dequeued")
	m.queueEnqueueErrors = m.counter("audio_queue_enqueue_errors_total", "Total rejected audio chunk enqueues")

	m.workersActive = m.gauge("worker_active_count", "Number of running pool workers")
	m.workerJobs = m.counterVec("worker_jobs_total", "Pool jobs by outcome", "outcome")
	m.workerJobLatency = m.histogram("worker_job_latency_milliseconds",
		"Pool job latency in milliseconds", []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000})

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Listen Session Metrics Functions.

// RecordListenSessionStart counts a new transcription socket.
func RecordListenSessionStart(language string) {
	globalManager.listenSessionsTotal.WithLabelValues(language).Inc()
	globalManager.listenSessionsActive.Inc()
}

// RecordListenSessionEnd closes the books on a transcription socket.
func RecordListenSessionEnd(duration time.Duration) {
	globalManager.listenSessionsActive.Dec()
	globalManager.listenSessionDuration.Observe(duration.Seconds())
}

// RecordAudioFrame counts one received PCM frame of n bytes.
func RecordAudioFrame(n int) {
	globalManager.audioFrames.Inc()
	globalManager.audioBytes.Add(float64(n))
}

// RecordAudioFrameDropped counts a frame lost to backpressure.
func RecordAudioFrameDropped() {
	globalManager.audioFramesDropped.Inc()
}

// RecordTranscriptEvent counts an event sent on a listen socket.
// kind is "final", "interim" or "error".
func RecordTranscriptEvent(kind string) {
	globalManager.transcriptEvents.WithLabelValues(kind).Inc()
}

// Speech Backend Metrics Functions.

// RecordRecognizeLatency records a recognition call latency in milliseconds.
func RecordRecognizeLatency(latencyMs float64) {
	globalManager.recognizeLatency.Observe(latencyMs)
}

// RecordTTSRequest counts a synthesis request.
func RecordTTSRequest(language string) {
	globalManager.ttsRequests.WithLabelValues(language).Inc()
}

// RecordTTSCacheHit counts a synthesis served from cache.
func RecordTTSCacheHit() {
	globalManager.ttsCacheHits.Inc()
}

// RecordTTSCacheMiss counts a synthesis that went to the backend.
func RecordTTSCacheMiss() {
	globalManager.ttsCacheMisses.Inc()
}

// RecordTTSLatency records a synthesis backend latency in milliseconds.
func RecordTTSLatency(latencyMs float64) {
	globalManager.ttsLatency.Observe(latencyMs)
}

// RecordTranslateRequest counts a translation.
func RecordTranslateRequest(sourceLanguage string) {
	globalManager.translateRequests.WithLabelValues(sourceLanguage).Inc()
}

// Game Metrics Functions.

// RecordScore observes a computed singing score.
func RecordScore(method string, overall int) {
	globalManager.scores.WithLabelValues(method).Observe(float64(overall))
}

// RecordPhraseScore observes a language-learning round score.
func RecordPhraseScore(score int) {
	globalManager.phraseScores.Observe(float64(score))
}

// RecordHighScoreSubmission counts a submission outcome: "saved",
// "not_qualified" or "duplicate".
func RecordHighScoreSubmission(board, outcome string) {
	globalManager.highScoreSubmissions.WithLabelValues(board, outcome).Inc()
}

// RecordStoreLatency records a high-score store operation latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Pool Metrics Functions.

// UpdateWorkerActiveCount updates the running worker gauge.
func UpdateWorkerActiveCount(count int) {
	globalManager.workersActive.Set(float64(count))
}

// RecordWorkerJob records a finished pool job with outcome ok or error.
func RecordWorkerJob(outcome string) {
	globalManager.workerJobs.WithLabelValues(outcome).Inc()
}

// RecordWorkerJobLatency records how long a pool job ran.
func RecordWorkerJobLatency(latencyMs float64) {
	globalManager.workerJobLatency.Observe(latencyMs)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

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

// RefreshInterval is how often callers should sample the system gauges.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}
