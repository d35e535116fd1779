package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"topicgraph/application/ports"
	"topicgraph/application/services"
	domainconfig "topicgraph/domain/config"
	"topicgraph/infrastructure/config"
	"topicgraph/infrastructure/messaging"
	"topicgraph/infrastructure/messaging/eventbridge"
	"topicgraph/infrastructure/persistence/badger"
	"topicgraph/infrastructure/persistence/cache"
	"topicgraph/infrastructure/persistence/dynamodb"
	"topicgraph/infrastructure/persistence/memory"
	"topicgraph/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

// ProvideDomainConfig derives the business rules from the environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return cfg.DomainConfig()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideInMemoryCache creates the cache behind the read-through store
func ProvideInMemoryCache() (*cache.InMemoryCache, func()) {
	c := cache.NewInMemoryCache(time.Minute)
	return c, c.Close
}

// ProvideTopicStore opens the configured backend and puts the read-through
// cache in front of it
func ProvideTopicStore(
	cfg *config.Config,
	client *awsdynamodb.Client,
	c *cache.InMemoryCache,
	logger *zap.Logger,
) (ports.TopicStore, func(), error) {
	var (
		store   ports.TopicStore
		cleanup = func() {}
	)

	switch cfg.StoreBackend {
	case config.StoreMemory:
		store = memory.NewTopicStore(logger)
	case config.StoreBadger:
		badgerStore, err := badger.Open(cfg.BadgerPath, cfg.BadgerInMemory, logger)
		if err != nil {
			return nil, nil, err
		}
		store = badgerStore
		cleanup = func() {
			if err := badgerStore.Close(); err != nil {
				logger.Error("Failed to close badger", zap.Error(err))
			}
		}
	case config.StoreDynamoDB:
		store = dynamodb.NewTopicStore(client, cfg.DynamoDBTable, logger)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.CacheTTLSeconds > 0 {
		store = cache.NewTopicStore(store, c, cfg.CacheTTLSeconds, logger)
	}

	logger.Info("Topic store ready",
		zap.String("backend", cfg.StoreBackend),
		zap.Bool("cached", cfg.CacheTTLSeconds > 0))
	return store, cleanup, nil
}

// ProvideEventBus creates the in-process dispatcher and subscribes the
// configured external sinks to it
func ProvideEventBus(
	cfg *config.Config,
	ddb *awsdynamodb.Client,
	eb *awseventbridge.Client,
	logger *zap.Logger,
) (ports.EventBus, error) {
	dispatcher := messaging.NewDispatcher(logger)

	if cfg.EnableJournal {
		retention := time.Duration(cfg.JournalRetentionDays) * 24 * time.Hour
		journal := dynamodb.NewEventJournal(ddb, cfg.DynamoDBTable, retention, logger)
		if err := dispatcher.Subscribe(messaging.AllEvents, messaging.Forward(journal)); err != nil {
			return nil, err
		}
	}

	if cfg.EventBusName != "" {
		publisher := eventbridge.NewPublisher(eb, cfg.EventBusName, logger)
		if err := dispatcher.Subscribe(messaging.AllEvents, messaging.Forward(publisher)); err != nil {
			return nil, err
		}
	}

	return dispatcher, nil
}

// ProvideEventPublisher narrows the bus to what the repository publishes through
func ProvideEventPublisher(bus ports.EventBus) ports.EventPublisher {
	return bus
}

// ProvidePrometheusRegistry creates the registry the metrics register with
func ProvidePrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates the metrics recorders
func ProvideMetrics(
	cfg *config.Config,
	reg *prometheus.Registry,
	client *awscloudwatch.Client,
	logger *zap.Logger,
) (ports.MetricsRecorder, error) {
	if !cfg.EnableMetrics {
		return ports.NoopMetrics{}, nil
	}

	prom, err := observability.NewMetrics(cfg.MetricsNamespace, reg)
	if err != nil {
		return nil, err
	}
	var cw observability.CloudWatchClient
	if client != nil {
		cw = client
	}
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
	return observability.Recorders{
		prom,
		observability.NewCloudWatchReporter(namespace, cw, logger),
	}, nil
}

// ProvideTopicRepository creates the repository. It is not opened yet.
func ProvideTopicRepository(
	store ports.TopicStore,
	publisher ports.EventPublisher,
	domainCfg *domainconfig.DomainConfig,
	metrics ports.MetricsRecorder,
	logger *zap.Logger,
) *services.TopicRepository {
	return services.NewTopicRepository(store, publisher, domainCfg, logger,
		services.WithMetrics(metrics))
}
