package config

import (
	"os"
	"strconv"

	domainconfig "topicgraph/domain/config"
	"topicgraph/pkg/utils"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	Environment string `validate:"required,oneof=development staging production test"`

	// Logging
	LogLevel string `validate:"oneof=debug info warn error"`

	// Storage
	StoreBackend   string `validate:"required,oneof=memory badger dynamodb"`
	BadgerPath     string `validate:"required_if=StoreBackend badger BadgerInMemory false"`
	BadgerInMemory bool

	// AWS configuration
	AWSRegion     string `validate:"required_if=StoreBackend dynamodb"`
	DynamoDBTable string `validate:"required_if=StoreBackend dynamodb"`
	EventBusName  string

	// Event journal in the DynamoDB table; zero retention keeps events forever
	EnableJournal        bool
	JournalRetentionDays int `validate:"min=0"`

	// Read-through cache in front of the store; zero disables it
	CacheTTLSeconds int `validate:"min=0"`

	// Schema seed applied by topicctl seed when no file is given
	SchemaFile string

	// Domain overrides; zero keeps the environment preset
	MaxDispatchDepth int `validate:"min=0,max=16"`
	DefaultHopBudget int `validate:"min=0,max=100"`
	StrictSchema     bool

	// Feature flags
	EnableMetrics    bool
	MetricsNamespace string `validate:"required_if=EnableMetrics true"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StoreBackend:   getEnv("STORE_BACKEND", StoreBadger),
		BadgerPath:     getEnv("BADGER_PATH", "./data/topics"),
		BadgerInMemory: getEnvBool("BADGER_IN_MEMORY", false),

		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "topicgraph"),
		EventBusName:  getEnv("EVENT_BUS_NAME", ""),

		EnableJournal:        getEnvBool("ENABLE_JOURNAL", false),
		JournalRetentionDays: getEnvInt("JOURNAL_RETENTION_DAYS", 0),

		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 300),

		SchemaFile: getEnv("SCHEMA_FILE", ""),

		MaxDispatchDepth: getEnvInt("MAX_DISPATCH_DEPTH", 0),
		DefaultHopBudget: getEnvInt("DEFAULT_HOP_BUDGET", 0),
		StrictSchema:     getEnvBool("STRICT_SCHEMA", false),

		EnableMetrics:    getEnvBool("ENABLE_METRICS", false),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "topicgraph"),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct tags
func (c *Config) Validate() error {
	return utils.ValidateStruct(c)
}

// DomainConfig returns the environment preset with the overrides applied
func (c *Config) DomainConfig() *domainconfig.DomainConfig {
	d := domainconfig.LoadDomainConfig(c.Environment)
	if c.MaxDispatchDepth > 0 {
		d.MaxDispatchDepth = c.MaxDispatchDepth
	}
	if c.DefaultHopBudget > 0 {
		d.DefaultHopBudget = c.DefaultHopBudget
	}
	if c.StrictSchema {
		d.StrictSchema = true
	}
	return d
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
