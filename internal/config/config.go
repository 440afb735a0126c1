package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	API      APIConfig      `yaml:"api"`
	Escrow   EscrowConfig   `yaml:"escrow"`
	Payments PaymentsConfig `yaml:"payments"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Exports  ExportConfig   `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Port            int                `yaml:"port"`
	MetricsPort     int                `yaml:"metrics_port"`
	SessionTTL      int                `yaml:"session_ttl"` // seconds
	AdminAPIKeys    []AdminAPIKey      `yaml:"admin_api_keys"`
	HeaderAPIKey    string             `yaml:"header_api_key"`
	RateLimit       APIRateLimitConfig `yaml:"rate_limit"`
	ShutdownTimeout int                `yaml:"shutdown_timeout"` // seconds
}

type AdminAPIKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type EscrowConfig struct {
	AutoReleaseDelay    int `yaml:"auto_release_delay"`    // seconds
	ReleasePollInterval int `yaml:"release_poll_interval"` // seconds
	ReleaseBatchSize    int `yaml:"release_batch_size"`
}

type PaymentsConfig struct {
	ProviderBaseURL string `yaml:"provider_base_url"`
	ProviderAPIKey  string `yaml:"provider_api_key"`
	WebhookSecret   string `yaml:"webhook_secret"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; exported variables win either way.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Payments.WebhookSecret == "" || c.Payments.WebhookSecret == "CHANGE_ME" {
		return errors.New("payments webhook secret is required")
	}
	if c.Escrow.AutoReleaseDelay < 0 {
		return errors.New("escrow auto_release_delay must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "commerzio"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.MetricsPort == 0 {
		c.API.MetricsPort = 9090
	}
	if c.API.SessionTTL == 0 {
		c.API.SessionTTL = models.DefaultSessionTTL
	}
	if c.API.HeaderAPIKey == "" {
		c.API.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = float64(models.RateLimitRequests) / float64(models.RateLimitWindow)
	}
	if c.API.ShutdownTimeout == 0 {
		c.API.ShutdownTimeout = 10
	}
	if c.Escrow.AutoReleaseDelay == 0 {
		c.Escrow.AutoReleaseDelay = models.DefaultAutoReleaseDelay
	}
	if c.Escrow.ReleasePollInterval == 0 {
		c.Escrow.ReleasePollInterval = models.DefaultReleasePollSeconds
	}
	if c.Escrow.ReleaseBatchSize == 0 {
		c.Escrow.ReleaseBatchSize = 50
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
