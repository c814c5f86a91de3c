// Package config loads the resource manager configuration from YAML,
// validates it, and supports hot-reloading the log level when the file
// changes on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/stores"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// encryptionKeyEnv overrides the configured encryption key. Preferred in
// production so the key never lands in the config file.
const encryptionKeyEnv = "CRM_ENCRYPTION_KEY"

// Config is the root configuration for the resource manager.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" validate:"required"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Sync       SyncConfig       `yaml:"sync"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path            string        `yaml:"path" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// EncryptionConfig configures credential sealing. KeyHex is a 32-byte key
// hex-encoded; the CRM_ENCRYPTION_KEY environment variable takes
// precedence over the file value.
type EncryptionConfig struct {
	KeyHex string `yaml:"key_hex" validate:"omitempty,len=64,hexadecimal"`
}

// SyncConfig tunes reconciliation and adapter behavior.
type SyncConfig struct {
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	PricingTimeout   time.Duration `yaml:"pricing_timeout"`
	ZoneWorkers      int           `yaml:"zone_workers" validate:"omitempty,min=1"`
	SyncWorkers      int           `yaml:"sync_workers" validate:"omitempty,min=1"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level        string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format       string `yaml:"format" validate:"omitempty,oneof=console json"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"min=0,max=1"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

// Default returns a configuration with working defaults for local use.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path: "crm.db",
		},
		Sync: SyncConfig{
			OperationTimeout: 5 * time.Minute,
			PricingTimeout:   10 * time.Second,
			ZoneWorkers:      4,
			SyncWorkers:      4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			ListenAddress: ":9464",
			Path:          "/metrics",
		},
	}
}

// Load reads and validates the config file. A missing path yields the
// defaults so the CLI works without any configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if key := os.Getenv(encryptionKeyEnv); key != "" {
		cfg.Encryption.KeyHex = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Store maps the database section onto the store configuration.
func (c *Config) Store() stores.Config {
	return stores.Config{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// Telemetry maps the observability sections onto the telemetry
// configuration.
func (c *Config) Telemetry(version string) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Logging.Level = c.Logging.Level
	tc.Logging.Format = c.Logging.Format
	tc.Logging.Output = c.Logging.Output
	tc.Logging.EnableCaller = c.Logging.EnableCaller
	tc.Tracing.Enabled = c.Tracing.Enabled
	tc.Tracing.Exporter = c.Tracing.Exporter
	tc.Tracing.Endpoint = c.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Tracing.SamplingRate
	tc.Tracing.Insecure = c.Tracing.Insecure
	tc.Metrics.Enabled = c.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Metrics.ListenAddress
	tc.Metrics.Path = c.Metrics.Path
	return tc
}
