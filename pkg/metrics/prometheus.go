package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every instrument of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	readingsReceived  *prometheus.CounterVec
	readingsAccepted  *prometheus.CounterVec
	readingsRejected  *prometheus.CounterVec
	readingsDuplicate prometheus.Counter

	// Queue and workers
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram
	workerCount            prometheus.Gauge
	workerLatency          prometheus.Histogram
	workerErrors           prometheus.Counter

	// Nodes
	nodeOnline *prometheus.GaugeVec
	nodeAge    *prometheus.GaugeVec

	// Engine
	riskScore        prometheus.Gauge
	riskComponent    *prometheus.GaugeVec
	systemState      prometheus.Gauge
	stateTransitions *prometheus.CounterVec
	zoneState        *prometheus.GaugeVec
	passageTotal     prometheus.Gauge
	flowRate         prometheus.Gauge
	deviceCount      prometheus.Gauge
	clusterCount     prometheus.Gauge
	tickDuration     prometheus.Histogram

	// Alerts and outbound
	alertsEmitted    *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	handlerErrors    *prometheus.CounterVec
	commandsSent     *prometheus.CounterVec
	publishes        *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide instruments

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps Go runtime collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager registers a full set of instruments on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shield",
		subsystem:        "core",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every instrument
	auto := promauto.With(m.registry)

	m.readingsReceived = auto.NewCounterVec(m.counterOpts("readings_received_total", "Raw node messages received by transport"), []string{"transport"})
	m.readingsAccepted = auto.NewCounterVec(m.counterOpts("readings_accepted_total", "Readings parsed and stored per node"), []string{"node"})
	m.readingsRejected = auto.NewCounterVec(m.counterOpts("readings_rejected_total", "Node messages rejected by reason"), []string{"reason"})
	m.readingsDuplicate = auto.NewCounter(m.counterOpts("readings_duplicate_total", "Duplicate datagrams dropped"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Readings waiting in the ingestion queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Ingestion queue capacity"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Readings enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Readings dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Readings refused by a full or closed queue"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_enqueue_latency_milliseconds", "Enqueue latency in milliseconds"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Ingestion workers running"))
	m.workerLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Time to store one reading in milliseconds"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Readings a worker failed to store"))

	m.nodeOnline = auto.NewGaugeVec(m.gaugeOpts("node_online", "1 when the node reported within the node timeout"), []string{"node"})
	m.nodeAge = auto.NewGaugeVec(m.gaugeOpts("node_reading_age_seconds", "Age of the newest reading per node"), []string{"node"})

	m.riskScore = auto.NewGauge(m.gaugeOpts("risk_score", "Fused risk score in [0,1]"))
	m.riskComponent = auto.NewGaugeVec(m.gaugeOpts("risk_component", "Risk component score in [0,1]"), []string{"component"})
	m.systemState = auto.NewGauge(m.gaugeOpts("system_state", "Committed system state rank, 0 CLEAR to 4 SURGE"))
	m.stateTransitions = auto.NewCounterVec(m.counterOpts("state_transitions_total", "Committed system state changes"), []string{"from", "to"})
	m.zoneState = auto.NewGaugeVec(m.gaugeOpts("zone_state", "Zone state, 0 CLEAR 1 OCCUPIED 2 CROWDED 3 OFFLINE"), []string{"zone"})
	m.passageTotal = auto.NewGauge(m.gaugeOpts("passages", "Confirmed doorway passages since start"))
	m.flowRate = auto.NewGauge(m.gaugeOpts("flow_rate_per_minute", "Doorway passages per minute"))
	m.deviceCount = auto.NewGauge(m.gaugeOpts("device_count", "Estimated people from Wi-Fi scans"))
	m.clusterCount = auto.NewGauge(m.gaugeOpts("cluster_count", "Dense clusters in the room"))
	m.tickDuration = auto.NewHistogram(m.histogramOpts("tick_duration_milliseconds", "Pipeline tick duration in milliseconds"))

	m.alertsEmitted = auto.NewCounterVec(m.counterOpts("alerts_emitted_total", "Alerts emitted by level"), []string{"level"})
	m.alertsSuppressed = auto.NewCounterVec(m.counterOpts("alerts_suppressed_total", "Alerts suppressed by level and reason"), []string{"level", "reason"})
	m.handlerErrors = auto.NewCounterVec(m.counterOpts("alert_handler_errors_total", "Alert handler failures"), []string{"handler"})
	m.commandsSent = auto.NewCounterVec(m.counterOpts("node_commands_total", "Commands sent to the door node by outcome"), []string{"command", "outcome"})
	m.publishes = auto.NewCounterVec(m.counterOpts("alert_publishes_total", "Alerts published to external sinks by outcome"), []string{"sink", "outcome"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Goroutines running"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds"))
}

// Ingestion.

// RecordReadingReceived counts a raw message from a transport ("udp", "http").
func RecordReadingReceived(transport string) {
	globalManager.readingsReceived.WithLabelValues(transport).Inc()
}

// RecordReadingAccepted counts a stored reading.
func RecordReadingAccepted(node string) {
	globalManager.readingsAccepted.WithLabelValues(node).Inc()
}

// RecordReadingRejected counts a message dropped for reason.
func RecordReadingRejected(reason string) {
	globalManager.readingsRejected.WithLabelValues(reason).Inc()
}

// RecordReadingDuplicate counts a duplicate datagram.
func RecordReadingDuplicate() {
	globalManager.readingsDuplicate.Inc()
}

// Queue and workers.

// UpdateQueueSize sets the current queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue depth.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records the time to store one reading.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Nodes.

// UpdateNodeOnline flags a node online or offline.
func UpdateNodeOnline(node string, online bool) {
	v := 0.0
	if online {
		v = 1
	}
	globalManager.nodeOnline.WithLabelValues(node).Set(v)
}

// UpdateNodeAge sets the age of a node's newest reading.
func UpdateNodeAge(node string, seconds float64) {
	globalManager.nodeAge.WithLabelValues(node).Set(seconds)
}

// Engine.

// UpdateRiskScore sets the fused risk score.
func UpdateRiskScore(score float64) {
	globalManager.riskScore.Set(score)
}

// UpdateRiskComponent sets one component score.
func UpdateRiskComponent(component string, score float64) {
	globalManager.riskComponent.WithLabelValues(component).Set(score)
}

// UpdateSystemState sets the committed state rank.
func UpdateSystemState(rank int) {
	globalManager.systemState.Set(float64(rank))
}

// RecordStateTransition counts a committed state change.
func RecordStateTransition(from, to string) {
	globalManager.stateTransitions.WithLabelValues(from, to).Inc()
}

// UpdateZoneState sets a zone's state value.
func UpdateZoneState(zone string, state int) {
	globalManager.zoneState.WithLabelValues(zone).Set(float64(state))
}

// UpdatePassages sets the passage total and the current flow rate.
func UpdatePassages(total int, perMinute float64) {
	globalManager.passageTotal.Set(float64(total))
	globalManager.flowRate.Set(perMinute)
}

// UpdateDeviceCount sets the estimated people count.
func UpdateDeviceCount(count int) {
	globalManager.deviceCount.Set(float64(count))
}

// UpdateClusterCount sets the number of dense clusters.
func UpdateClusterCount(count int) {
	globalManager.clusterCount.Set(float64(count))
}

// RecordTickDuration records one pipeline tick.
func RecordTickDuration(ms float64) {
	globalManager.tickDuration.Observe(ms)
}

// Alerts and outbound.

// RecordAlertEmitted counts an emitted alert.
func RecordAlertEmitted(level string) {
	globalManager.alertsEmitted.WithLabelValues(level).Inc()
}

// RecordAlertSuppressed counts an alert dropped by cooldown or rate limit.
func RecordAlertSuppressed(level, reason string) {
	globalManager.alertsSuppressed.WithLabelValues(level, reason).Inc()
}

// RecordAlertHandlerError counts a failed or panicking handler.
func RecordAlertHandlerError(handler string) {
	globalManager.handlerErrors.WithLabelValues(handler).Inc()
}

// RecordCommand counts a door-node command by outcome ("sent", "failed", "no_target").
func RecordCommand(command, outcome string) {
	globalManager.commandsSent.WithLabelValues(command, outcome).Inc()
}

// RecordPublish counts an alert publish to an external sink.
func RecordPublish(sink, outcome string) {
	globalManager.publishes.WithLabelValues(sink, outcome).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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

// GetRegistry returns the registry the global instruments live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
