package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordEventProcessed(kind notify.Kind, success bool, duration time.Duration)
	RecordBatchProcessed(count int, duration time.Duration)
	RecordOutboxLag(lag int)
	RecordPublishAttempt(kind notify.Kind, attempt int, success bool)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventProcessed(notify.Kind, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordBatchProcessed(int, time.Duration)               {}
func (NoOpMetricsCollector) RecordOutboxLag(int)                                   {}
func (NoOpMetricsCollector) RecordPublishAttempt(notify.Kind, int, bool)           {}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher notify.Publisher
	metrics   MetricsCollector
	clock     clockwork.Clock
}

func NewMetricPublisher(publisher notify.Publisher, metrics MetricsCollector, clock clockwork.Clock) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, env notify.Envelope) error {
	start := p.clock.Now()

	err := p.publisher.Publish(ctx, env)

	p.metrics.RecordEventProcessed(env.Kind, err == nil, p.clock.Since(start))
	return err
}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	eventCounter    *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	batchSize       prometheus.Histogram
	batchDuration   prometheus.Histogram
	outboxLag       prometheus.Gauge
	publishAttempts *prometheus.CounterVec
}

func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		eventCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Outbox notifications processed by kind and status.",
		}, []string{"kind", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_duration_seconds",
			Help:      "Time spent publishing one notification.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_size",
			Help:      "Notifications fetched per relay batch.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Time spent relaying one batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		outboxLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "pending_events",
			Help:      "Unsent notifications left in the outbox.",
		}),
		publishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_attempts_total",
			Help:      "Publish attempts by kind, attempt number and status.",
		}, []string{"kind", "attempt", "status"}),
	}

	reg.MustRegister(
		m.eventCounter,
		m.eventDuration,
		m.batchSize,
		m.batchDuration,
		m.outboxLag,
		m.publishAttempts,
	)
	return m
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *PrometheusMetrics) RecordEventProcessed(kind notify.Kind, success bool, duration time.Duration) {
	m.eventCounter.WithLabelValues(string(kind), status(success)).Inc()
	m.eventDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordBatchProcessed(count int, duration time.Duration) {
	m.batchSize.Observe(float64(count))
	m.batchDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordOutboxLag(lag int) {
	m.outboxLag.Set(float64(lag))
}

func (m *PrometheusMetrics) RecordPublishAttempt(kind notify.Kind, attempt int, success bool) {
	m.publishAttempts.WithLabelValues(string(kind), strconv.Itoa(attempt), status(success)).Inc()
}
