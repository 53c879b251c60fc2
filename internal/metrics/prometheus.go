package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertbus_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertbus_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "alertbus_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Routing metrics
	RoutingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertbus_routing_decisions_total",
			Help: "Total number of routing decisions",
		},
		[]string{"event_type", "outcome"}, // outcome: matched|fallback|unrouted
	)

	// Dispatch metrics
	DispatchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertbus_dispatch_attempts_total",
			Help: "Total number of channel delivery attempts",
		},
		[]string{"channel", "priority", "status"}, // status: success|error
	)

	DispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertbus_dispatch_latency_seconds",
			Help:    "Channel delivery latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"channel"},
	)

	// Voice metrics
	VoiceAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertbus_voice_alerts_total",
			Help: "Total number of voice alerts by outcome",
		},
		[]string{"trigger", "outcome"}, // outcome: played|queued|dropped|failed|evicted
	)

	VoiceQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertbus_voice_queue_depth",
			Help: "Current number of voice alerts waiting for cooldown",
		},
	)

	// Stats metrics
	ThresholdViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertbus_threshold_violations_total",
			Help: "Total number of threshold violations detected",
		},
		[]string{"metric", "severity"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertbus_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)

	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertbus_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"store", "operation", "status"}, // store: redis|clickhouse
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(RoutingDecisions)

	prometheus.MustRegister(DispatchAttempts)
	prometheus.MustRegister(DispatchLatency)

	prometheus.MustRegister(VoiceAlerts)
	prometheus.MustRegister(VoiceQueueDepth)

	prometheus.MustRegister(ThresholdViolations)

	prometheus.MustRegister(KafkaMessages)
	prometheus.MustRegister(StoreOperations)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordRouting records the outcome of one routing decision
func RecordRouting(eventType string, matched, fallback bool) {
	outcome := "unrouted"
	switch {
	case fallback:
		outcome = "fallback"
	case matched:
		outcome = "matched"
	}
	RoutingDecisions.WithLabelValues(eventType, outcome).Inc()
}

// RecordDispatch records one channel delivery attempt
func RecordDispatch(channel, priority string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	DispatchAttempts.WithLabelValues(channel, priority, status).Inc()
	DispatchLatency.WithLabelValues(channel).Observe(latency.Seconds())
}

// RecordVoiceAlert records a voice pipeline transition
func RecordVoiceAlert(trigger, outcome string, queueDepth int) {
	VoiceAlerts.WithLabelValues(trigger, outcome).Inc()
	VoiceQueueDepth.Set(float64(queueDepth))
}

// RecordStoreOperation records a redis/clickhouse operation
func RecordStoreOperation(store, operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreOperations.WithLabelValues(store, operation, status).Inc()
}

// RecordThresholdViolation records a stats threshold breach
func RecordThresholdViolation(metric, severity string) {
	ThresholdViolations.WithLabelValues(metric, severity).Inc()
}

// RecordKafkaMessage records a produced or consumed Kafka message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}
