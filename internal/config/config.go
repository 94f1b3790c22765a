package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Authority endpoints per environment tier.
const (
	productionEndpoint = "https://ee.formlens.com/api/licenses/check"
	stagingEndpoint    = "https://ee.staging.formlens.com/api/licenses/check"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	License  LicenseConfig  `yaml:"license" envconfig:"LICENSE"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"omitempty,oneof=json text"`
}

// LicenseConfig contains enterprise license configuration. An empty Key is a
// valid terminal state: the deployment runs unlicensed.
type LicenseConfig struct {
	Key         string `yaml:"key" envconfig:"KEY"`
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT" validate:"omitempty,oneof=production staging"`
	ProxyURL    string `yaml:"proxy_url" envconfig:"PROXY_URL"`
	// Disabled switches enforcement off entirely (self-hosted open mode):
	// all features granted, the authority never contacted.
	Disabled bool `yaml:"disabled" envconfig:"DISABLED"`
	// BuildPhase suppresses verification during image builds and
	// provisioning, when no usable network or identity exists.
	BuildPhase bool `yaml:"build_phase" envconfig:"BUILD_PHASE"`
	// InstanceID overrides the generated deployment identity.
	InstanceID string `yaml:"instance_id" envconfig:"INSTANCE_ID"`
	// InstanceIDFile is where a generated identity is persisted.
	InstanceIDFile string `yaml:"instance_id_file" envconfig:"INSTANCE_ID_FILE"`
}

// Endpoint returns the authority URL for the configured environment tier.
func (l LicenseConfig) Endpoint() string {
	if l.Environment == "staging" {
		return stagingEndpoint
	}
	return productionEndpoint
}

// DatabaseConfig contains the Postgres connection configuration.
type DatabaseConfig struct {
	URL string `yaml:"url" envconfig:"URL"`
}

var validate = validator.New()

// Load loads configuration from environment variables (prefix FORMLENS) with
// an optional YAML file underneath. Environment variables take precedence
// over the file; defaults fill whatever remains unset.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("FORMLENS_CONFIG_FILE"))
}

// LoadFrom loads configuration with an explicit YAML file path. An empty
// path skips file loading.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("FORMLENS", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 50
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 25
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.License.Environment == "" {
		c.License.Environment = "production"
	}
	if c.License.InstanceIDFile == "" {
		c.License.InstanceIDFile = "instance-id"
	}
	if c.Database.URL == "" {
		c.Database.URL = "postgres://localhost:5432/formlens"
	}
}

// Validate checks constraints beyond what struct tags express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.License.Disabled && c.License.Key != "" {
		return fmt.Errorf("license.disabled and license.key are mutually exclusive")
	}
	return nil
}
