// Package config loads application configuration from environment variables
// and an optional YAML file. Environment variables take precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Backend BackendConfig `yaml:"backend" envconfig:"BACKEND"`
	Verify  VerifyConfig  `yaml:"verify" envconfig:"VERIFY"`
	Reveal  RevealConfig  `yaml:"reveal" envconfig:"REVEAL"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Tracing TracingConfig `yaml:"tracing" envconfig:"TRACING"`
}

// ServerConfig contains the local HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// BackendConfig contains the storefront backend collaborator configuration
type BackendConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"15s"`
	RateLimit float64       `yaml:"rate_limit" envconfig:"RATE_LIMIT" default:"20"`
	RateBurst int           `yaml:"rate_burst" envconfig:"RATE_BURST" default:"10"`
}

// VerifyConfig contains the bot-verification provider configuration. An empty
// endpoint leaves the provider uninitialized; checkout submissions will then
// fail with a distinct user-facing error.
type VerifyConfig struct {
	Endpoint string        `yaml:"endpoint" envconfig:"ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"10s"`
}

// RevealConfig contains the secret reveal widget windows
type RevealConfig struct {
	Window       time.Duration `yaml:"window" envconfig:"WINDOW" default:"10s"`
	CopiedWindow time.Duration `yaml:"copied_window" envconfig:"COPIED_WINDOW" default:"2s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// TracingConfig controls the OpenTelemetry trace exporter
type TracingConfig struct {
	Exporter    string  `yaml:"exporter" envconfig:"EXPORTER" default:"stdout"`
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1.0"`
}

// Load loads configuration from environment variables and, when present, a
// config file named by STORE_CONFIG_FILE (default config.yaml).
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first; env (and env defaults) take
	// precedence over the file.
	if err := envconfig.Process("STORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := os.Getenv("STORE_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		mergeConfigs(fileCfg, &cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs fills env-config fields that are still empty from the file.
// Only fields without an env default can be empty here.
func mergeConfigs(fileCfg, envCfg *Config) {
	if envCfg.Backend.BaseURL == "" {
		envCfg.Backend.BaseURL = fileCfg.Backend.BaseURL
	}
	if envCfg.Verify.Endpoint == "" {
		envCfg.Verify.Endpoint = fileCfg.Verify.Endpoint
	}
}

// validate checks configuration invariants
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend base_url must be an http(s) URL: %s", c.Backend.BaseURL)
	}
	if c.Reveal.Window <= 0 {
		return fmt.Errorf("reveal window must be positive")
	}
	switch c.Tracing.Exporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be within [0, 1]: %g", c.Tracing.SampleRatio)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}
