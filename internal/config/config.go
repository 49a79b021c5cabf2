package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Target   TargetConfig   `mapstructure:"target"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Stress   StressConfig   `mapstructure:"stress"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TargetConfig selects what to fetch. With an empty URL the stress tool
// starts an embedded fault server and fetches from it.
type TargetConfig struct {
	URL        string `mapstructure:"url"`
	ListenAddr string `mapstructure:"listen_addr"`

	// Embedded fault server profile
	SizeBytes     int64 `mapstructure:"size_bytes"`
	Seed          int64 `mapstructure:"seed"`
	TruncateEvery int64 `mapstructure:"truncate_every"`
	FailFirst     int   `mapstructure:"fail_first"`
	FailEvery     int   `mapstructure:"fail_every"`
}

// FetchConfig contains fetch engine settings
type FetchConfig struct {
	HighWaterMark int         `mapstructure:"high_water_mark"`
	Retry         RetryConfig `mapstructure:"retry"`
}

// RetryConfig contains the transient-failure retry policy
type RetryConfig struct {
	MaxAttempts int    `mapstructure:"max_attempts"`
	MinDelay    string `mapstructure:"min_delay"`
	MaxDelay    string `mapstructure:"max_delay"`
}

// StressConfig contains stress workload settings
type StressConfig struct {
	Workers          int    `mapstructure:"workers"`
	Iterations       int    `mapstructure:"iterations"`
	SampleInterval   string `mapstructure:"sample_interval"`
	ProgressInterval string `mapstructure:"progress_interval"`
	SavePayloadDir   string `mapstructure:"save_payload_dir"`
}

// DatabaseConfig contains result database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("target.url", "")
	viper.SetDefault("target.listen_addr", "127.0.0.1:0")
	viper.SetDefault("target.size_bytes", 4*1024*1024)
	viper.SetDefault("target.seed", 1)
	viper.SetDefault("target.truncate_every", 1024*1024)
	viper.SetDefault("target.fail_first", 0)
	viper.SetDefault("target.fail_every", 0)
	viper.SetDefault("fetch.high_water_mark", 64*1024)
	viper.SetDefault("fetch.retry.max_attempts", 5)
	viper.SetDefault("fetch.retry.min_delay", "100ms")
	viper.SetDefault("fetch.retry.max_delay", "5s")
	viper.SetDefault("stress.workers", 4)
	viper.SetDefault("stress.iterations", 10)
	viper.SetDefault("stress.sample_interval", "1s")
	viper.SetDefault("stress.progress_interval", "2s")
	viper.SetDefault("stress.save_payload_dir", "")
	viper.SetDefault("database.path", "resumefetch.db")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Target.URL == "" && c.Target.SizeBytes < 0 {
		return fmt.Errorf("target.size_bytes must not be negative")
	}

	if c.Fetch.HighWaterMark <= 0 {
		return fmt.Errorf("fetch.high_water_mark must be positive")
	}
	if c.Fetch.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.retry.max_attempts must be positive")
	}
	if _, err := time.ParseDuration(c.Fetch.Retry.MinDelay); err != nil {
		return fmt.Errorf("invalid fetch.retry.min_delay: %w", err)
	}
	if _, err := time.ParseDuration(c.Fetch.Retry.MaxDelay); err != nil {
		return fmt.Errorf("invalid fetch.retry.max_delay: %w", err)
	}
	if c.GetMinDelay() > c.GetMaxDelay() {
		return fmt.Errorf("fetch.retry.min_delay must not exceed max_delay")
	}

	if c.Stress.Workers < 1 || c.Stress.Workers > 256 {
		return fmt.Errorf("stress.workers must be between 1 and 256")
	}
	if c.Stress.Iterations < 1 {
		return fmt.Errorf("stress.iterations must be positive")
	}
	if _, err := time.ParseDuration(c.Stress.SampleInterval); err != nil {
		return fmt.Errorf("invalid stress.sample_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Stress.ProgressInterval); err != nil {
		return fmt.Errorf("invalid stress.progress_interval: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}
	return nil
}

// GetMinDelay returns the minimum retry delay as time.Duration
func (c *Config) GetMinDelay() time.Duration {
	d, _ := time.ParseDuration(c.Fetch.Retry.MinDelay)
	if d == 0 {
		return 100 * time.Millisecond
	}
	return d
}

// GetMaxDelay returns the maximum retry delay as time.Duration
func (c *Config) GetMaxDelay() time.Duration {
	d, _ := time.ParseDuration(c.Fetch.Retry.MaxDelay)
	if d == 0 {
		return 5 * time.Second
	}
	return d
}

// GetSampleInterval returns the resource sample interval as time.Duration
func (c *StressConfig) GetSampleInterval() time.Duration {
	d, _ := time.ParseDuration(c.SampleInterval)
	if d == 0 {
		return time.Second
	}
	return d
}

// GetProgressInterval returns the progress log interval as time.Duration
func (c *StressConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	if d == 0 {
		return 2 * time.Second
	}
	return d
}
