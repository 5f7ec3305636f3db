package config

import (
	"fmt"
	"strings"
)

// DomainConfig holds the limits and defaults the mutation engine enforces
type DomainConfig struct {
	// Graph constraints
	MaxNodesPerGraph int
	MaxLinksPerPin   int

	// Batch constraints
	MaxOperationsPerBatch int
	DefaultOnError        string
	DefaultAutoCompile    bool

	// Layout used by auto_arrange
	ArrangeOriginX       float64
	ArrangeOriginY       float64
	ArrangeColumnSpacing float64
	ArrangeRowSpacing    float64
	ArrangeGridSnap      float64

	// Schema switches
	AllowSelfConnections bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerGraph: 10000,
		MaxLinksPerPin:   64,

		MaxOperationsPerBatch: 2000,
		DefaultOnError:        "stop",
		DefaultAutoCompile:    true,

		ArrangeOriginX:       0,
		ArrangeOriginY:       0,
		ArrangeColumnSpacing: 320,
		ArrangeRowSpacing:    180,
		ArrangeGridSnap:      16,

		AllowSelfConnections: false,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxOperationsPerBatch = 500
	config.DefaultOnError = "rollback"

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxNodesPerGraph = 100000
	config.MaxOperationsPerBatch = 20000
	config.AllowSelfConnections = true

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch strings.ToLower(environment) {
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
	if c.MaxNodesPerGraph <= 0 {
		return fmt.Errorf("max nodes per graph must be positive")
	}
	if c.MaxLinksPerPin <= 0 {
		return fmt.Errorf("max links per pin must be positive")
	}
	if c.MaxOperationsPerBatch <= 0 {
		return fmt.Errorf("max operations per batch must be positive")
	}
	switch c.DefaultOnError {
	case "rollback", "continue", "stop":
	default:
		return fmt.Errorf("default on_error must be rollback, continue or stop, got %q", c.DefaultOnError)
	}
	if c.ArrangeColumnSpacing <= 0 || c.ArrangeRowSpacing <= 0 {
		return fmt.Errorf("arrange spacing must be positive")
	}
	return nil
}
