// Package monitoring holds the Prometheus collectors of a pipeline run.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	statements     *prometheus.CounterVec
	passes         *prometheus.CounterVec
	passDuration   *prometheus.HistogramVec
	partitions     prometheus.Counter
	reduceRunning  prometheus.Gauge
	reduceFailures prometheus.Counter
	bypassed       prometheus.Counter
	smushResources prometheus.Gauge
	smushClusters  prometheus.Gauge
	smushRewritten prometheus.Counter
}

// NewMetrics registers the collectors on reg; a nil reg yields nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Metrics{
		statements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rdfstream",
			Name:      "statements_total",
			Help:      "Statements seen by a tracked stage",
		}, []string{"stage"}),
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rdfstream",
			Name:      "passes_total",
			Help:      "Completed passes of a tracked stage",
		}, []string{"stage"}),
		passDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rdfstream",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a pass of a tracked stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		partitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfstream",
			Name:      "mapreduce_partitions_total",
			Help:      "Partitions handed to reducers",
		}),
		reduceRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rdfstream",
			Name:      "mapreduce_reduce_tasks_running",
			Help:      "Reduce tasks currently holding a permit",
		}),
		reduceFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfstream",
			Name:      "mapreduce_reduce_failures_total",
			Help:      "Partitions whose reducer returned an error",
		}),
		bypassed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfstream",
			Name:      "mapreduce_bypassed_total",
			Help:      "Statements forwarded without grouping",
		}),
		smushResources: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rdfstream",
			Name:      "smush_resources",
			Help:      "Resources linked by equivalence statements",
		}),
		smushClusters: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rdfstream",
			Name:      "smush_clusters",
			Help:      "Equivalence clusters after normalization",
		}),
		smushRewritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfstream",
			Name:      "smush_rewritten_total",
			Help:      "Statements rewritten to canonical resources",
		}),
	}
}

func (m *Metrics) AddStatements(stage string, n int64) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) PassDone(stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(stage).Inc()
	m.passDuration.WithLabelValues(stage).Observe(took.Seconds())
}

func (m *Metrics) AddPartitions(n int) {
	if m == nil {
		return
	}
	m.partitions.Add(float64(n))
}

func (m *Metrics) ReduceStarted() {
	if m == nil {
		return
	}
	m.reduceRunning.Inc()
}

func (m *Metrics) ReduceFinished(failed bool) {
	if m == nil {
		return
	}
	m.reduceRunning.Dec()
	if failed {
		m.reduceFailures.Inc()
	}
}

func (m *Metrics) Bypassed() {
	if m == nil {
		return
	}
	m.bypassed.Inc()
}

func (m *Metrics) SmushNormalized(resources, clusters int) {
	if m == nil {
		return
	}
	m.smushResources.Set(float64(resources))
	m.smushClusters.Set(float64(clusters))
}

func (m *Metrics) SmushRewritten() {
	if m == nil {
		return
	}
	m.smushRewritten.Inc()
}
