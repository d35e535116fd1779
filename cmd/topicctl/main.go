package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"topicgraph/application/services"
	"topicgraph/infrastructure/config"
	"topicgraph/infrastructure/di"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd(openRepository)
	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("topicctl: %v", err)
	}
}

// openRepository wires the container from the environment
func openRepository(ctx context.Context) (*services.TopicRepository, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	container, cleanup, err := di.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return container.Repository, func() {
		cleanup()
		_ = container.Logger.Sync()
	}, nil
}
