package di

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"topicgraph/application/ports"
	"topicgraph/application/services"
	"topicgraph/infrastructure/config"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      ports.TopicStore
	EventBus   ports.EventBus
	Metrics    ports.MetricsRecorder
	Registry   *prometheus.Registry
	Repository *services.TopicRepository
}

// Open wires a container and opens the repository on it. The returned
// cleanup releases the store and must be called once done.
func Open(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	container, cleanup, err := InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := container.Repository.Open(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return container, cleanup, nil
}
