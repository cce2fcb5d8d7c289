package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pressroom/pkg/monitoring"
)

// Metrics exposes pipeline outcome counters through the service's Prometheus
// registry. All methods are nil-safe so tests can run without a collector.
type Metrics struct {
	batchesTotal    prometheus.Counter
	itemsTotal      *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	publishFailures prometheus.Counter
}

func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	m := &Metrics{
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressroom_batches_total",
			Help: "Total number of pipeline batch runs",
		}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressroom_items_total",
			Help: "Item outcomes by status",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pressroom_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressroom_publish_failures_total",
			Help: "Batch publish calls that failed after item creation",
		}),
	}

	mc.RegisterCustomMetric("batches_total", m.batchesTotal)
	mc.RegisterCustomMetric("items_total", m.itemsTotal)
	mc.RegisterCustomMetric("stage_duration", m.stageDuration)
	mc.RegisterCustomMetric("publish_failures_total", m.publishFailures)

	return m
}

func (m *Metrics) recordBatch() {
	if m != nil {
		m.batchesTotal.Inc()
	}
}

func (m *Metrics) recordItem(status Outcome) {
	if m != nil {
		m.itemsTotal.WithLabelValues(string(status)).Inc()
	}
}

func (m *Metrics) recordStage(stage string, start time.Time) {
	if m != nil {
		m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) recordPublishFailure() {
	if m != nil {
		m.publishFailures.Inc()
	}
}
