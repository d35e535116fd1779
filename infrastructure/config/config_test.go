package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "topicgraph/pkg/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "STORE_BACKEND", "LOG_LEVEL", "MAX_DISPATCH_DEPTH", "DEFAULT_HOP_BUDGET", "STRICT_SCHEMA", "ENABLE_METRICS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StoreBadger, cfg.StoreBackend)
	assert.True(t, cfg.IsDevelopment())

	d := cfg.DomainConfig()
	assert.Equal(t, 3, d.MaxDispatchDepth)
	assert.Equal(t, 10, d.DefaultHopBudget, "development preset")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("STORE_BACKEND", "dynamodb")
	t.Setenv("MAX_DISPATCH_DEPTH", "5")
	t.Setenv("DEFAULT_HOP_BUDGET", "20")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())

	d := cfg.DomainConfig()
	assert.Equal(t, 5, d.MaxDispatchDepth)
	assert.Equal(t, 20, d.DefaultHopBudget)
	assert.True(t, d.StrictSchema)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:      "test",
			LogLevel:         "info",
			StoreBackend:     StoreMemory,
			MetricsNamespace: "topicgraph",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown backend", func(c *Config) { c.StoreBackend = "postgres" }, "StoreBackend"},
		{"unknown environment", func(c *Config) { c.Environment = "qa" }, "Environment"},
		{"badger needs a path", func(c *Config) { c.StoreBackend = StoreBadger }, "BadgerPath"},
		{"dynamodb needs a table", func(c *Config) { c.StoreBackend = StoreDynamoDB; c.AWSRegion = "eu-west-1" }, "DynamoDBTable"},
		{"dispatch depth bound", func(c *Config) { c.MaxDispatchDepth = 99 }, "MaxDispatchDepth"},
		{"negative cache ttl", func(c *Config) { c.CacheTTLSeconds = -1 }, "CacheTTLSeconds"},
		{"metrics need a namespace", func(c *Config) { c.EnableMetrics = true; c.MetricsNamespace = "" }, "MetricsNamespace"},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	inMemory := valid()
	inMemory.StoreBackend = StoreBadger
	inMemory.BadgerInMemory = true
	assert.NoError(t, inMemory.Validate())
}
