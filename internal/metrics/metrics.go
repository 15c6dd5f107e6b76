package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
)

const namespace = "emergency_dispatch"

// Metrics groups the dispatch counters. A nil *Metrics records nothing.
type Metrics struct {
	JobsTotal     *prometheus.CounterVec
	OutcomesTotal *prometheus.CounterVec
	RetriesTotal  *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	QueueDepth    prometheus.Gauge

	NotifierRuns     *prometheus.CounterVec
	NotifierDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Dispatch jobs processed, by priority and pipeline result",
		}, []string{"priority", "result"}),
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Delivery outcomes produced, by channel and status",
		}, []string{"channel", "status"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Extra channel invocations beyond the first",
		}, []string{"channel"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent running one job's fallback pipeline",
			Buckets:   prometheus.DefBuckets,
		}, []string{"priority"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the priority queue",
		}),
		NotifierRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_runs_total",
			Help:      "Pipeline runs per notifier, by result",
		}, []string{"notifier", "result"}),
		NotifierDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notifier_run_duration_seconds",
			Help:      "Duration of one notifier pipeline run",
			Buckets:   prometheus.DefBuckets,
		}, []string{"notifier"}),
	}
	reg.MustRegister(
		m.JobsTotal,
		m.OutcomesTotal,
		m.RetriesTotal,
		m.JobDuration,
		m.QueueDepth,
		m.NotifierRuns,
		m.NotifierDuration,
	)
	return m
}

func (m *Metrics) ObserveJob(priority models.Priority, result string, elapsed time.Duration, outcomes []models.DeliveryOutcome) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(priority.String(), result).Inc()
	m.JobDuration.WithLabelValues(priority.String()).Observe(elapsed.Seconds())
	for _, o := range outcomes {
		m.OutcomesTotal.WithLabelValues(o.Channel, string(o.Status)).Inc()
		if o.Attempts > 1 {
			m.RetriesTotal.WithLabelValues(o.Channel).Add(float64(o.Attempts - 1))
		}
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// ObserveNotifier tracks run count and duration for a named notifier.
func (m *Metrics) ObserveNotifier(name, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.NotifierRuns.WithLabelValues(name, result).Inc()
	m.NotifierDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}
