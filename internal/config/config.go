package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/internal/notifier"
	"github.com/Rizwank123/emergency_dispatch/internal/strategy"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	// Database Configuration
	DatabaseHost     string `mapstructure:"DB_HOST"`
	DatabasePort     int    `mapstructure:"DB_PORT"`
	DatabaseUsername string `mapstructure:"DB_USERNAME"`
	DatabasePassword string `mapstructure:"DB_PASSWORD"`
	DatabaseName     string `mapstructure:"DB_DATABASE_NAME"`
	DatabaseSSLMode  string `mapstructure:"DB_SSL_MODE"`
	DatabaseMaxConns int32  `mapstructure:"DB_MAX_CONNS"`
	DatabaseMinConns int32  `mapstructure:"DB_MIN_CONNS"`
	StoreBackend     string `mapstructure:"STORE_BACKEND"`

	// Application Configuration
	AppEnvironment string `mapstructure:"APP_ENVIRONMENT"`
	AppName        string `mapstructure:"APP_NAME"`
	MetricsAddr    string `mapstructure:"METRICS_ADDR"`

	// Queue Configuration
	QueueWorkers       int `mapstructure:"QUEUE_WORKERS"`
	PollIntervalMs     int `mapstructure:"POLL_INTERVAL_MS"`
	ShutdownTimeoutSec int `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`

	// Retry Configuration
	MaxRetries      int    `mapstructure:"MAX_RETRIES"`
	RetryDelayMs    int    `mapstructure:"RETRY_DELAY_MS"`
	RetryMaxDelayMs int    `mapstructure:"RETRY_MAX_DELAY_MS"`
	RetryBackoff    string `mapstructure:"RETRY_BACKOFF"`
	UrgentBonus     int    `mapstructure:"URGENT_BONUS"`

	// Pipeline Configuration
	DefaultChannels      string `mapstructure:"DEFAULT_CHANNELS"`
	UnknownChannelPolicy string `mapstructure:"UNKNOWN_CHANNEL_POLICY"`
	MissingContactStatus string `mapstructure:"MISSING_CONTACT_STATUS"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// E-mail delivery via Resend; empty key keeps the simulated transport.
	ResendApiKey string `mapstructure:"RESEND_API_KEY"`
	FromEmail    string `mapstructure:"FROM_EMAIL"`

	// Firebase Configuration (for FCM push notifications)
	FirebaseProjectID      string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialPath string `mapstructure:"FIREBASE_CREDENTIAL_PATH"`
	PushTitle              string `mapstructure:"PUSH_TITLE"`

	// ConfigFile is the .env file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

// Load reads .env from the working directory or its parent, then overlays
// environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	return load(v)
}

// LoadFile is Load with an explicit env file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USERNAME", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_DATABASE_NAME", "emergency_dispatch")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("STORE_BACKEND", StoreMemory)

	// Application defaults
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_NAME", "campus")
	v.SetDefault("METRICS_ADDR", ":9090")

	// Queue defaults
	v.SetDefault("QUEUE_WORKERS", 4)
	v.SetDefault("POLL_INTERVAL_MS", 200)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 30)

	// Retry defaults
	v.SetDefault("MAX_RETRIES", strategy.DefaultMaxRetries)
	v.SetDefault("RETRY_DELAY_MS", 1000)
	v.SetDefault("RETRY_MAX_DELAY_MS", 15000)
	v.SetDefault("RETRY_BACKOFF", string(strategy.BackoffFixed))
	v.SetDefault("URGENT_BONUS", 0)

	// Pipeline defaults
	v.SetDefault("DEFAULT_CHANNELS", strings.Join(models.DefaultChannelOrder, ","))
	v.SetDefault("UNKNOWN_CHANNEL_POLICY", string(notifier.UnknownRecord))
	v.SetDefault("MISSING_CONTACT_STATUS", string(models.StatusFailed))

	// Logging defaults
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// Transport defaults. Empty keys are still declared so AutomaticEnv
	// values reach Unmarshal.
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_CREDENTIAL_PATH", "")
	v.SetDefault("FROM_EMAIL", "alerts@resend.dev")
	v.SetDefault("PUSH_TITLE", "Emergency alert")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseHost == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.DatabasePort <= 0 {
			return fmt.Errorf("invalid DB_PORT")
		}
		if c.DatabaseUsername == "" {
			return fmt.Errorf("DB_USERNAME is required")
		}
		if c.DatabaseName == "" {
			return fmt.Errorf("DB_DATABASE_NAME is required")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q", StoreMemory, StorePostgres)
	}

	// Queue validation
	if c.QueueWorkers <= 0 {
		return fmt.Errorf("QUEUE_WORKERS must be positive")
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}

	// Retry validation
	if c.MaxRetries <= 0 {
		return fmt.Errorf("MAX_RETRIES must be positive")
	}
	if c.RetryDelayMs < 0 || c.RetryMaxDelayMs < 0 {
		return fmt.Errorf("retry delays must be non-negative")
	}
	if c.UrgentBonus < 0 {
		return fmt.Errorf("URGENT_BONUS must be non-negative")
	}
	switch strategy.Backoff(c.RetryBackoff) {
	case strategy.BackoffFixed, strategy.BackoffExponential:
	default:
		return fmt.Errorf("RETRY_BACKOFF must be %q or %q", strategy.BackoffFixed, strategy.BackoffExponential)
	}

	// Pipeline validation
	for _, name := range c.Channels() {
		if !slices.Contains(models.DefaultChannelOrder, name) {
			return fmt.Errorf("DEFAULT_CHANNELS: unknown channel %q", name)
		}
	}
	switch notifier.UnknownChannelPolicy(c.UnknownChannelPolicy) {
	case notifier.UnknownRecord, notifier.UnknownIgnore:
	default:
		return fmt.Errorf("UNKNOWN_CHANNEL_POLICY must be %q or %q", notifier.UnknownRecord, notifier.UnknownIgnore)
	}
	switch c.MissingStatus() {
	case models.StatusFailed, models.StatusSkipped:
	default:
		return fmt.Errorf("MISSING_CONTACT_STATUS must be FAILED or SKIPPED")
	}

	// Logging validation
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}

	return nil
}

// Helper methods for duration conversion
func (c *Config) GetRetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c *Config) GetRetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Channels returns DEFAULT_CHANNELS as normalised names.
func (c *Config) Channels() []string {
	var out []string
	for _, part := range strings.Split(c.DefaultChannels, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (c *Config) MissingStatus() models.DeliveryStatus {
	return models.DeliveryStatus(strings.ToUpper(strings.TrimSpace(c.MissingContactStatus)))
}

func (c *Config) RetryConfig() strategy.RetryConfig {
	return strategy.RetryConfig{
		MaxRetries:  c.MaxRetries,
		Delay:       c.GetRetryDelay(),
		MaxDelay:    c.GetRetryMaxDelay(),
		Backoff:     strategy.Backoff(c.RetryBackoff),
		UrgentBonus: c.UrgentBonus,
	}
}

func (c *Config) PipelineConfig() notifier.PipelineConfig {
	return notifier.PipelineConfig{
		DefaultOrder:   c.Channels(),
		UnknownChannel: notifier.UnknownChannelPolicy(c.UnknownChannelPolicy),
	}
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.AppEnvironment == "development"
}

func (c *Config) UsePostgres() bool {
	return c.StoreBackend == StorePostgres
}

func (c *Config) ResendEnabled() bool {
	return c.ResendApiKey != ""
}

func (c *Config) FirebaseEnabled() bool {
	return c.FirebaseProjectID != "" && c.FirebaseCredentialPath != ""
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DatabaseUsername,
		c.DatabasePassword,
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}
