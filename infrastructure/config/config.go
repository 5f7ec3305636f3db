package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	domainconfig "graphengine/domain/config"
)

// FileEnv names the environment variable pointing at an optional YAML
// overlay. Values from the file sit between the defaults and the
// environment.
const FileEnv = "GRAPHENGINE_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address"`
	Environment     string        `yaml:"environment"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Host
	MainThreadQueue int  `yaml:"main_thread_queue"`
	SeedDemoAssets  bool `yaml:"seed_demo_assets"`

	// Journal; an empty path turns it off
	JournalPath      string        `yaml:"journal_path"`
	OutboxInterval   time.Duration `yaml:"outbox_interval"`
	OutboxBatchSize  int           `yaml:"outbox_batch_size"`
	OutboxMaxRetries int           `yaml:"outbox_max_retries"`

	// AWS configuration
	AWSRegion           string `yaml:"aws_region"`
	EventBusName        string `yaml:"event_bus_name"`
	EventBridgeEndpoint string `yaml:"eventbridge_endpoint"`
	EnablePublishing    bool   `yaml:"enable_publishing"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Observability
	ServiceName   string `yaml:"service_name"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`

	// HTTP adapter
	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`

	// Domain limits, picked by environment
	Domain *domainconfig.DomainConfig `yaml:"-"`

	// Source is the overlay file that was read, if any
	Source string `yaml:"-"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		RequestTimeout:   30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		MainThreadQueue:  64,
		SeedDemoAssets:   true,
		JournalPath:      "graphengine.db",
		OutboxInterval:   5 * time.Second,
		OutboxBatchSize:  50,
		OutboxMaxRetries: 3,
		AWSRegion:        "us-west-2",
		EventBusName:     "graphengine-events",
		LogLevel:         "info",
		ServiceName:      "graphengine",
		EnableMetrics:    true,
		EnableCORS:       true,
		AllowedOrigins:   []string{"*"},
		RateLimit:        50,
		RateBurst:        100,
	}
}

// LoadConfig loads the defaults, the optional overlay file and then the
// environment, and validates the result
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.Domain = domainconfig.LoadDomainConfig(cfg.Environment)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	c.Source = path
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.MainThreadQueue = getEnvInt("MAIN_THREAD_QUEUE", c.MainThreadQueue)
	c.SeedDemoAssets = getEnvBool("SEED_DEMO_ASSETS", c.SeedDemoAssets)

	c.JournalPath = getEnvAllowEmpty("JOURNAL_PATH", c.JournalPath)
	c.OutboxInterval = getEnvDuration("OUTBOX_INTERVAL", c.OutboxInterval)
	c.OutboxBatchSize = getEnvInt("OUTBOX_BATCH_SIZE", c.OutboxBatchSize)
	c.OutboxMaxRetries = getEnvInt("OUTBOX_MAX_RETRIES", c.OutboxMaxRetries)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.EventBridgeEndpoint = getEnv("EVENTBRIDGE_ENDPOINT", c.EventBridgeEndpoint)
	c.EnablePublishing = getEnvBool("ENABLE_PUBLISHING", c.EnablePublishing)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ServiceName = getEnv("SERVICE_NAME", c.ServiceName)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)

	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	c.RateLimit = getEnvFloat("RATE_LIMIT", c.RateLimit)
	c.RateBurst = getEnvInt("RATE_BURST", c.RateBurst)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("SERVER_ADDRESS is required")
	}
	switch c.Environment {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("unknown ENVIRONMENT %q", c.Environment)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.MainThreadQueue < 0 {
		return fmt.Errorf("MAIN_THREAD_QUEUE must not be negative")
	}
	if c.JournalPath != "" && (c.OutboxInterval <= 0 || c.OutboxBatchSize <= 0 || c.OutboxMaxRetries <= 0) {
		return fmt.Errorf("outbox interval, batch size and max retries must be positive")
	}
	if c.EnablePublishing && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when publishing is enabled")
	}
	if c.EnableTracing && c.OTLPEndpoint == "" && c.IsProduction() {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required for tracing in production")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}
	if c.Domain != nil {
		if err := c.Domain.Validate(); err != nil {
			return fmt.Errorf("domain config: %w", err)
		}
	}
	return nil
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

// getEnvAllowEmpty lets a variable that is set but empty clear the value
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "":
		return defaultValue
	case "true", "1", "yes":
		return true
	}
	return false
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
