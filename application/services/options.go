package services

import (
	"time"

	"topicgraph/application/ports"
	"topicgraph/domain/core/entities"
)

type options struct {
	clock        func() time.Time
	metrics      ports.MetricsRecorder
	capabilities *entities.CapabilityRegistry
}

// Option customises the repository and coordinator
type Option func(*options)

// WithClock overrides the time source for save timestamps
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetrics attaches a metrics recorder
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithCapabilities overrides the capability registry given to topics
func WithCapabilities(r *entities.CapabilityRegistry) Option {
	return func(o *options) {
		if r != nil {
			o.capabilities = r
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:        time.Now,
		metrics:      ports.NoopMetrics{},
		capabilities: entities.DefaultCapabilities(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
