// Package observability reports repository operation outcomes to
// Prometheus and CloudWatch
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"topicgraph/application/ports"
	pkgerrors "topicgraph/pkg/errors"
)

// Operation labels
const (
	OperationSave   = "save"
	OperationDelete = "delete"
	OperationLoad   = "load"
)

// outcome labels an operation by its error type, or "success"
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		return string(appErr.Type)
	}
	return "error"
}

// Metrics implements ports.MetricsRecorder with Prometheus collectors
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	topics     *prometheus.CounterVec
	unresolved prometheus.Counter
}

var _ ports.MetricsRecorder = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "operations_total",
			Help:      "Repository operations by outcome",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "operation_duration_seconds",
			Help:      "Repository operation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		topics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "topics_total",
			Help:      "Topics written, deleted or loaded",
		}, []string{"operation"}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "deferred_writes_total",
			Help:      "Topics that needed a second save pass for unresolved references",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.latency, m.topics, m.unresolved} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) record(operation string, topics int, duration time.Duration, err error) {
	m.operations.WithLabelValues(operation, outcome(err)).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
	if err == nil {
		m.topics.WithLabelValues(operation).Add(float64(topics))
	}
}

// RecordSave records a save operation
func (m *Metrics) RecordSave(topics, unresolved int, duration time.Duration, err error) {
	m.record(OperationSave, topics, duration, err)
	if err == nil {
		m.unresolved.Add(float64(unresolved))
	}
}

// RecordDelete records a delete operation
func (m *Metrics) RecordDelete(topics int, duration time.Duration, err error) {
	m.record(OperationDelete, topics, duration, err)
}

// RecordLoad records a graph load
func (m *Metrics) RecordLoad(topics int, duration time.Duration, err error) {
	m.record(OperationLoad, topics, duration, err)
}

// Recorders fans every call out to each recorder
type Recorders []ports.MetricsRecorder

// RecordSave records a save operation on every recorder
func (r Recorders) RecordSave(topics, unresolved int, duration time.Duration, err error) {
	for _, rec := range r {
		rec.RecordSave(topics, unresolved, duration, err)
	}
}

// RecordDelete records a delete operation on every recorder
func (r Recorders) RecordDelete(topics int, duration time.Duration, err error) {
	for _, rec := range r {
		rec.RecordDelete(topics, duration, err)
	}
}

// RecordLoad records a graph load on every recorder
func (r Recorders) RecordLoad(topics int, duration time.Duration, err error) {
	for _, rec := range r {
		rec.RecordLoad(topics, duration, err)
	}
}
