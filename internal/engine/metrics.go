package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports engine counters and gauges to Prometheus.
type Metrics struct {
	registry      prometheus.Registerer
	tasksTotal    *prometheus.CounterVec
	taskDuration  prometheus.Histogram
	queueDepth    prometheus.Gauge
	workersBusy   prometheus.Gauge
	insightsKept  prometheus.Gauge
	subscriptions prometheus.Gauge
}

// InitMetrics registers engine metrics under the given namespace. A nil
// registerer falls back to the Prometheus default.
func InitMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of insight tasks by outcome",
			},
			[]string{"status"},
		),
		taskDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of completed insight tasks",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Number of tasks waiting in the queue",
			},
		),
		workersBusy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workers_busy",
				Help:      "Number of workers currently processing a task",
			},
		),
		insightsKept: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "insights_stored",
				Help:      "Number of insights currently in the store",
			},
		),
		subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "subscriptions_live",
				Help:      "Number of live subscriptions",
			},
		),
	}

	reg.MustRegister(
		m.tasksTotal,
		m.taskDuration,
		m.queueDepth,
		m.workersBusy,
		m.insightsKept,
		m.subscriptions,
	)

	return m
}

// Task outcome labels.
const (
	statusSubmitted = "submitted"
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusRetried   = "retried"
	statusEvicted   = "evicted"
)

func (m *Metrics) recordTask(status string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.Observe(d.Seconds())
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) setWorkersBusy(n int) {
	if m == nil {
		return
	}
	m.workersBusy.Set(float64(n))
}

func (m *Metrics) setInsightsStored(n int) {
	if m == nil {
		return
	}
	m.insightsKept.Set(float64(n))
}

func (m *Metrics) setSubscriptions(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Set(float64(n))
}
