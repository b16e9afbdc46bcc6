package metrics

import "github.com/prometheus/client_golang/prometheus"

// SagaMetrics exposes counters/histograms for the appointment pipeline.
type SagaMetrics struct {
	stageTotal    *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	deadLettered  *prometheus.CounterVec
	publishFailed *prometheus.CounterVec
	replays       prometheus.Counter
}

func NewSagaMetrics(reg prometheus.Registerer) *SagaMetrics {
	m := &SagaMetrics{
		stageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "saga",
			Name:      "stage_total",
			Help:      "Stage invocations by outcome",
		}, []string{"stage", "country", "outcome"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "appointments",
			Subsystem: "saga",
			Name:      "stage_latency_seconds",
			Help:      "Latency of a single stage invocation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "saga",
			Name:      "dead_lettered_total",
			Help:      "Messages moved to the dead-letter queue",
		}, []string{"queue", "reason"}),
		publishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "saga",
			Name:      "publish_failed_entries_total",
			Help:      "Event bus entries rejected in a batch publish",
		}, []string{"detail_type"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "api",
			Name:      "idempotent_replays_total",
			Help:      "Create requests answered from a stored idempotency key",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stageTotal, m.stageLatency, m.deadLettered, m.publishFailed, m.replays)
	return m
}

func (m *SagaMetrics) ObserveStage(stage, country, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.stageTotal.WithLabelValues(stage, country, outcome).Inc()
	m.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *SagaMetrics) ObserveDeadLetter(queue, reason string) {
	if m == nil {
		return
	}
	m.deadLettered.WithLabelValues(queue, reason).Inc()
}

func (m *SagaMetrics) ObservePublishFailure(detailType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.publishFailed.WithLabelValues(detailType).Add(float64(n))
}

func (m *SagaMetrics) ObserveReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}
