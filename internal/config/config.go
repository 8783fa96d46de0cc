package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Gmail     GmailConfig     `mapstructure:"gmail"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects it
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds secrets used to open tenant credentials stored at rest
type SecurityConfig struct {
	// MasterKey is a base64 or hex encoded 32-byte key. Empty disables decryption
	// of *_enc settings columns.
	MasterKey string `mapstructure:"master_key"`
}

// SchedulerConfig controls the recurring trigger that runs the overdue scan
type SchedulerConfig struct {
	// Interval between two scans (default: 24h)
	Interval time.Duration `mapstructure:"interval"`
	// StartAt is an optional wall-clock time "HH:MM" (UTC) for the first run
	StartAt string `mapstructure:"start_at"`
	// RunOnStart runs one scan immediately when the trigger starts
	RunOnStart bool `mapstructure:"run_on_start"`
	// LockKey is the Redis key used to keep replicas from scanning concurrently
	LockKey string `mapstructure:"lock_key"`
	// LockTTL bounds how long a crashed run can hold the lock
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// ReminderConfig holds overdue reminder settings
type ReminderConfig struct {
	// ThrottleWindow is the minimum time between two reminders for one loan
	ThrottleWindow time.Duration `mapstructure:"throttle_window"`
	// AppName is shown in the default reminder body
	AppName string `mapstructure:"app_name"`
}

// SMTPConfig holds transport-level SMTP settings shared by all tenants
type SMTPConfig struct {
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// GmailConfig holds Gmail API endpoint overrides
type GmailConfig struct {
	// TokenURL overrides the Google OAuth2 token endpoint
	TokenURL string `mapstructure:"token_url"`
	// Endpoint overrides the Gmail API base URL
	Endpoint string `mapstructure:"endpoint"`
}

// MetricsConfig holds the Prometheus listener configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shelfmail")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SHELFMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that viper cannot type-check on its own
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.StartAt != "" {
		if _, err := time.Parse("15:04", c.Scheduler.StartAt); err != nil {
			return fmt.Errorf("scheduler.start_at must be HH:MM: %w", err)
		}
	}
	if c.Reminder.ThrottleWindow <= 0 {
		return fmt.Errorf("reminder.throttle_window must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "shelfmail")
	v.SetDefault("database.user", "shelfmail")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("security.master_key", "")

	// Scheduler defaults
	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.start_at", "")
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.lock_key", "shelfmail:overdue_scan")
	v.SetDefault("scheduler.lock_ttl", "1h")

	// Reminder defaults
	v.SetDefault("reminder.throttle_window", "24h")
	v.SetDefault("reminder.app_name", "Library")

	v.SetDefault("smtp.dial_timeout", "10s")

	v.SetDefault("gmail.token_url", "")
	v.SetDefault("gmail.endpoint", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
}
