// Package config provides configuration management for the wheel tracker.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	apperrors "wheel-tracker/internal/errors"
)

const (
	appName    = "wheel-tracker"
	envPrefix  = "WHEEL"
	configName = "config"
)

// Config holds all application configuration.
type Config struct {
	Database      DatabaseConfig     `mapstructure:"database"`
	Quotes        QuotesConfig       `mapstructure:"quotes"`
	Monitor       MonitorConfig      `mapstructure:"monitor"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Credentials   Credentials        `mapstructure:"-" json:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// DatabaseConfig holds position store configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// QuotesConfig holds quote provider configuration.
type QuotesConfig struct {
	Provider  string            `mapstructure:"provider"` // yahoo, alpaca, static
	Timeout   time.Duration     `mapstructure:"timeout"`
	RateLimit float64           `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int               `mapstructure:"burst"`
	Retries   int               `mapstructure:"retries"`
	CacheTTL  time.Duration     `mapstructure:"cache_ttl"` // 0 disables caching
	Yahoo     YahooConfig       `mapstructure:"yahoo"`
	Alpaca    AlpacaConfig      `mapstructure:"alpaca"`
	Breaker   BreakerConfig     `mapstructure:"breaker"`
	Static    map[string]string `mapstructure:"static"`
}

// YahooConfig holds Yahoo Finance settings.
type YahooConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// AlpacaConfig holds Alpaca market data settings. Keys live in credentials.toml.
type AlpacaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Feed    string `mapstructure:"feed"` // iex, sip
}

// BreakerConfig holds circuit breaker settings for the quote provider.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// MonitorConfig holds refresh scheduler configuration.
type MonitorConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	ExpirationDTE        int           `mapstructure:"expiration_dte"`
	AssignmentMoneyness  float64       `mapstructure:"assignment_moneyness"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	RunOnStart           bool          `mapstructure:"run_on_start"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Level     string         `mapstructure:"level"` // all, warnings, errors_only
	QueueSize int            `mapstructure:"queue_size"`
	Retries   int            `mapstructure:"retries"` // delivery attempts per channel
	Terminal  TerminalConfig `mapstructure:"terminal"`
	Webhook   WebhookConfig  `mapstructure:"webhook"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Email     EmailConfig    `mapstructure:"email"`
}

// TerminalConfig holds terminal notification configuration.
type TerminalConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Color   bool `mapstructure:"color"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token" json:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

// EmailConfig holds email notification configuration.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password" json:"-"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

// Credentials holds API credentials.
type Credentials struct {
	Alpaca AlpacaCredentials `mapstructure:"alpaca"`
}

// AlpacaCredentials holds Alpaca API credentials.
type AlpacaCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// envOverrides lists the WHEEL_* environment variables that win over the
// config files.
type envOverrides struct {
	DBPath          string        `envconfig:"DB_PATH"`
	QuoteProvider   string        `envconfig:"QUOTE_PROVIDER"`
	MonitorInterval time.Duration `envconfig:"MONITOR_INTERVAL"`
	LogLevel        string        `envconfig:"LOG_LEVEL"`
	NotifyLevel     string        `envconfig:"NOTIFY_LEVEL"`
	AlpacaAPIKey    string        `envconfig:"ALPACA_API_KEY"`
	AlpacaAPISecret string        `envconfig:"ALPACA_API_SECRET"`
	WebhookURL      string        `envconfig:"WEBHOOK_URL"`
	TelegramToken   string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID  string        `envconfig:"TELEGRAM_CHAT_ID"`
	SMTPPassword    string        `envconfig:"SMTP_PASSWORD"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// ConfigPath returns the path of config.toml inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, configName+".toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files are
// created from templates and loading continues with their defaults.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(configDir, "wheel.db")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any files.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Unmarshalling viper's own defaults cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("quotes.provider", "yahoo")
	v.SetDefault("quotes.timeout", "10s")
	v.SetDefault("quotes.rate_limit", 2.0)
	v.SetDefault("quotes.burst", 2)
	v.SetDefault("quotes.retries", 0)
	v.SetDefault("quotes.cache_ttl", "30s")
	v.SetDefault("quotes.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("quotes.alpaca.base_url", "https://data.alpaca.markets")
	v.SetDefault("quotes.alpaca.feed", "iex")
	v.SetDefault("quotes.breaker.enabled", true)
	v.SetDefault("quotes.breaker.failure_threshold", 5)
	v.SetDefault("quotes.breaker.cooldown", "1m")

	v.SetDefault("monitor.interval", "5m")
	v.SetDefault("monitor.expiration_dte", 7)
	v.SetDefault("monitor.assignment_moneyness", 95.0)
	v.SetDefault("monitor.max_concurrent_fetches", 8)
	v.SetDefault("monitor.fetch_timeout", "20s")
	v.SetDefault("monitor.run_on_start", true)

	v.SetDefault("notifications.level", "all")
	v.SetDefault("notifications.queue_size", 100)
	v.SetDefault("notifications.retries", 3)
	v.SetDefault("notifications.terminal.enabled", true)
	v.SetDefault("notifications.terminal.color", true)
	v.SetDefault("notifications.email.smtp_port", 587)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.console", false)
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and use defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return err
	}

	if env.DBPath != "" {
		cfg.Database.Path = env.DBPath
	}
	if env.QuoteProvider != "" {
		cfg.Quotes.Provider = env.QuoteProvider
	}
	if env.MonitorInterval != 0 {
		cfg.Monitor.Interval = env.MonitorInterval
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.NotifyLevel != "" {
		cfg.Notifications.Level = env.NotifyLevel
	}

	// Alpaca credentials
	if env.AlpacaAPIKey != "" {
		cfg.Credentials.Alpaca.APIKey = env.AlpacaAPIKey
	}
	if env.AlpacaAPISecret != "" {
		cfg.Credentials.Alpaca.APISecret = env.AlpacaAPISecret
	}

	// Notification secrets
	if env.WebhookURL != "" {
		cfg.Notifications.Webhook.URL = env.WebhookURL
	}
	if env.TelegramToken != "" {
		cfg.Notifications.Telegram.BotToken = env.TelegramToken
	}
	if env.TelegramChatID != "" {
		cfg.Notifications.Telegram.ChatID = env.TelegramChatID
	}
	if env.SMTPPassword != "" {
		cfg.Notifications.Email.Password = env.SMTPPassword
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Quotes.Provider) {
	case "yahoo", "alpaca", "static":
	default:
		return invalid("quotes.provider %q (must be yahoo, alpaca or static)", c.Quotes.Provider)
	}
	if strings.EqualFold(c.Quotes.Provider, "alpaca") && (c.Credentials.Alpaca.APIKey == "" || c.Credentials.Alpaca.APISecret == "") {
		return invalid("alpaca provider needs api_key and api_secret in credentials.toml")
	}
	if c.Quotes.Timeout <= 0 {
		return invalid("quotes.timeout must be positive")
	}
	if c.Quotes.RateLimit < 0 {
		return invalid("quotes.rate_limit must be non-negative")
	}
	if c.Quotes.Retries < 0 {
		return invalid("quotes.retries must be non-negative")
	}
	if c.Quotes.CacheTTL < 0 {
		return invalid("quotes.cache_ttl must be non-negative")
	}

	if c.Monitor.Interval <= 0 {
		return invalid("monitor.interval must be positive")
	}
	if c.Monitor.FetchTimeout <= 0 {
		return invalid("monitor.fetch_timeout must be positive")
	}
	if c.Monitor.MaxConcurrentFetches < 1 {
		return invalid("monitor.max_concurrent_fetches must be at least 1")
	}
	if c.Monitor.ExpirationDTE < 0 {
		return invalid("monitor.expiration_dte must be non-negative")
	}
	if c.Monitor.AssignmentMoneyness <= 0 || c.Monitor.AssignmentMoneyness > 200 {
		return invalid("monitor.assignment_moneyness must be between 0 and 200")
	}

	switch c.Notifications.Level {
	case "", "all", "warnings", "errors_only":
	default:
		return invalid("notifications.level %q (must be all, warnings or errors_only)", c.Notifications.Level)
	}
	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return invalid("notifications.webhook.url is required when the webhook is enabled")
	}
	if c.Notifications.Telegram.Enabled && (c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "") {
		return invalid("notifications.telegram needs bot_token and chat_id")
	}
	if c.Notifications.Email.Enabled && (c.Notifications.Email.SMTPHost == "" || c.Notifications.Email.To == "") {
		return invalid("notifications.email needs smtp_host and to")
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return apperrors.Wrapf(apperrors.ErrConfigInvalid, format, args...)
}
