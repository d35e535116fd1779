package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"topicgraph/application/ports"
	"topicgraph/infrastructure/config"
	"topicgraph/infrastructure/persistence/cache"
	"topicgraph/infrastructure/persistence/memory"
	"topicgraph/pkg/observability"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		LogLevel:         "debug",
		StoreBackend:     config.StoreMemory,
		AWSRegion:        "us-west-2",
		DynamoDBTable:    "topics",
		MetricsNamespace: "topicgraph",
	}
}

func TestProvideLogger(t *testing.T) {
	cfg := testConfig()
	logger, err := ProvideLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.LogLevel = "chatty"
	_, err = ProvideLogger(cfg)
	assert.Error(t, err)
}

func TestProvideTopicStore(t *testing.T) {
	logger := zaptest.NewLogger(t)
	c, closeCache := ProvideInMemoryCache()
	defer closeCache()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		cached  bool
		wantErr bool
	}{
		{name: "memory", mutate: func(*config.Config) {}},
		{name: "memory behind cache", mutate: func(c *config.Config) { c.CacheTTLSeconds = 30 }, cached: true},
		{name: "badger in memory", mutate: func(c *config.Config) {
			c.StoreBackend = config.StoreBadger
			c.BadgerInMemory = true
		}},
		{name: "unknown backend", mutate: func(c *config.Config) { c.StoreBackend = "tape" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			store, cleanup, err := ProvideTopicStore(cfg, nil, c, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer cleanup()

			_, isCached := store.(*cache.TopicStore)
			assert.Equal(t, tt.cached, isCached)
			if cfg.StoreBackend == config.StoreMemory && !tt.cached {
				assert.IsType(t, &memory.TopicStore{}, store)
			}

			records, err := store.LoadAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestProvideMetrics(t *testing.T) {
	cfg := testConfig()
	logger := zaptest.NewLogger(t)

	recorder, err := ProvideMetrics(cfg, ProvidePrometheusRegistry(), nil, logger)
	require.NoError(t, err)
	assert.Equal(t, ports.NoopMetrics{}, recorder)

	cfg.EnableMetrics = true
	recorder, err = ProvideMetrics(cfg, ProvidePrometheusRegistry(), nil, logger)
	require.NoError(t, err)
	assert.IsType(t, observability.Recorders{}, recorder)
}

func TestProvideEventBusWithoutSinks(t *testing.T) {
	bus, err := ProvideEventBus(testConfig(), nil, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Same(t, bus, ProvideEventPublisher(bus))
}
