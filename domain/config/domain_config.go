package config

import "fmt"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Collection constraints
	MaxKeyLength     int
	MaxDispatchDepth int

	// Inheritance
	MaxHopBudget     int
	DefaultHopBudget int

	// Graph layout
	ConfigurationKey   string
	PathSeparator      string
	MaxVersionsPerNode int

	// Schema
	StrictSchema bool

	// Save behaviour
	RecordVersionOnSave bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxKeyLength:     128,
		MaxDispatchDepth: 3,

		MaxHopBudget:     100,
		DefaultHopBudget: 5,

		ConfigurationKey:   "configuration",
		PathSeparator:      ":",
		MaxVersionsPerNode: 0, // unbounded

		StrictSchema: false,

		RecordVersionOnSave: true,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Reject attributes the content type does not declare
	config.StrictSchema = true
	config.MaxVersionsPerNode = 500

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.StrictSchema = false
	config.DefaultHopBudget = 10

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxKeyLength <= 0 {
		return fmt.Errorf("max key length must be positive, got %d", c.MaxKeyLength)
	}
	if c.MaxDispatchDepth < 1 {
		return fmt.Errorf("max dispatch depth must be at least 1, got %d", c.MaxDispatchDepth)
	}
	if c.MaxHopBudget < 0 {
		return fmt.Errorf("max hop budget cannot be negative, got %d", c.MaxHopBudget)
	}
	if c.DefaultHopBudget < 0 || c.DefaultHopBudget > c.MaxHopBudget {
		return fmt.Errorf("default hop budget %d outside [0, %d]", c.DefaultHopBudget, c.MaxHopBudget)
	}
	if c.PathSeparator == "" {
		return fmt.Errorf("path separator cannot be empty")
	}
	if c.MaxVersionsPerNode < 0 {
		return fmt.Errorf("max versions per node cannot be negative, got %d", c.MaxVersionsPerNode)
	}
	return nil
}
