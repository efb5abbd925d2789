package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/0xmhha/creation-finder/internal/constants"
	"github.com/0xmhha/creation-finder/search"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the finder
type Config struct {
	RPC     RPCConfig     `yaml:"rpc"`
	Log     LogConfig     `yaml:"log"`
	Search  SearchConfig  `yaml:"search"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RPCConfig holds RPC client configuration
type RPCConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	// RequestsPerSecond throttles eth_getCode probes; 0 disables throttling
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SearchConfig holds creation block search configuration
type SearchConfig struct {
	// Strategy is "binary" or "interpolation" ("interp"), case insensitive
	Strategy string `yaml:"strategy"`
	// MinBlock and MaxBlock restrict the searched window; 0 means unset
	MinBlock uint64 `yaml:"min_block"`
	MaxBlock uint64 `yaml:"max_block"`
	// Estimate is the guessed creation block for interpolation search
	Estimate uint64 `yaml:"estimate"`
	// Bias is the interpolation exponent; values below 1 trust the estimate longer
	Bias float64 `yaml:"bias"`
	// Concurrency is the number of addresses searched in parallel
	Concurrency int `yaml:"concurrency"`
}

// MetricsConfig holds Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	// RPC defaults
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = constants.DefaultQueryTimeout
	}
	if c.RPC.Burst == 0 {
		c.RPC.Burst = constants.DefaultRequestBurst
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	// Search defaults
	if c.Search.Strategy == "" {
		c.Search.Strategy = constants.DefaultStrategy
	}
	if c.Search.Bias == 0 {
		c.Search.Bias = constants.DefaultBias
	}
	if c.Search.Concurrency == 0 {
		c.Search.Concurrency = constants.DefaultConcurrency
	}

	// Metrics defaults
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = constants.DefaultMetricsListen
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// RPC configuration
	if endpoint := os.Getenv("FINDER_RPC_ENDPOINT"); endpoint != "" {
		c.RPC.Endpoint = endpoint
	}
	if timeout := os.Getenv("FINDER_RPC_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid FINDER_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = d
	}
	if rps := os.Getenv("FINDER_RPC_REQUESTS_PER_SECOND"); rps != "" {
		v, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return fmt.Errorf("invalid FINDER_RPC_REQUESTS_PER_SECOND: %w", err)
		}
		c.RPC.RequestsPerSecond = v
	}
	if burst := os.Getenv("FINDER_RPC_BURST"); burst != "" {
		v, err := strconv.Atoi(burst)
		if err != nil {
			return fmt.Errorf("invalid FINDER_RPC_BURST: %w", err)
		}
		c.RPC.Burst = v
	}

	// Log configuration
	if level := os.Getenv("FINDER_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("FINDER_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	// Search configuration
	if strategy := os.Getenv("FINDER_SEARCH_STRATEGY"); strategy != "" {
		c.Search.Strategy = strategy
	}
	if minBlock := os.Getenv("FINDER_SEARCH_MIN_BLOCK"); minBlock != "" {
		v, err := strconv.ParseUint(minBlock, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid FINDER_SEARCH_MIN_BLOCK: %w", err)
		}
		c.Search.MinBlock = v
	}
	if maxBlock := os.Getenv("FINDER_SEARCH_MAX_BLOCK"); maxBlock != "" {
		v, err := strconv.ParseUint(maxBlock, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid FINDER_SEARCH_MAX_BLOCK: %w", err)
		}
		c.Search.MaxBlock = v
	}
	if estimate := os.Getenv("FINDER_SEARCH_ESTIMATE"); estimate != "" {
		v, err := strconv.ParseUint(estimate, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid FINDER_SEARCH_ESTIMATE: %w", err)
		}
		c.Search.Estimate = v
	}
	if bias := os.Getenv("FINDER_SEARCH_BIAS"); bias != "" {
		v, err := strconv.ParseFloat(bias, 64)
		if err != nil {
			return fmt.Errorf("invalid FINDER_SEARCH_BIAS: %w", err)
		}
		c.Search.Bias = v
	}
	if concurrency := os.Getenv("FINDER_SEARCH_CONCURRENCY"); concurrency != "" {
		v, err := strconv.Atoi(concurrency)
		if err != nil {
			return fmt.Errorf("invalid FINDER_SEARCH_CONCURRENCY: %w", err)
		}
		c.Search.Concurrency = v
	}

	// Metrics configuration
	if enabled := os.Getenv("FINDER_METRICS_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid FINDER_METRICS_ENABLED: %w", err)
		}
		c.Metrics.Enabled = v
	}
	if listen := os.Getenv("FINDER_METRICS_LISTEN"); listen != "" {
		c.Metrics.Listen = listen
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate RPC configuration
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("RPC endpoint is required")
	}
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}
	if c.RPC.RequestsPerSecond < 0 {
		return fmt.Errorf("RPC requests per second cannot be negative")
	}
	if c.RPC.Burst <= 0 {
		return fmt.Errorf("RPC burst must be positive")
	}

	// Validate log configuration
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	// Validate search configuration
	strategy, err := search.ParseStrategy(c.Search.Strategy)
	if err != nil {
		return fmt.Errorf("invalid search strategy: %w", err)
	}
	if c.Search.MinBlock > 0 && c.Search.MaxBlock > 0 && c.Search.MinBlock > c.Search.MaxBlock {
		return fmt.Errorf("min block %d is greater than max block %d", c.Search.MinBlock, c.Search.MaxBlock)
	}
	if strategy == search.StrategyInterpolation && c.Search.Estimate == 0 {
		return fmt.Errorf("interpolation search requires an estimate")
	}
	if !(c.Search.Bias > 0) {
		return fmt.Errorf("search bias must be positive")
	}
	if c.Search.Concurrency <= 0 {
		return fmt.Errorf("search concurrency must be positive")
	}
	if c.Search.Concurrency > constants.MaxConcurrency {
		return fmt.Errorf("search concurrency cannot exceed %d", constants.MaxConcurrency)
	}

	// Validate metrics configuration
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	return nil
}

// Load is a convenience method that loads configuration in the following order:
// 1. Set defaults
// 2. Load from file (if provided)
// 3. Load from environment variables (override file)
//
// Validation is left to the caller so command-line flags can be applied first.
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	// Load from file if provided
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Load from environment variables (override file)
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Set defaults for any missing values
	cfg.SetDefaults()

	return cfg, nil
}
