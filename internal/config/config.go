package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	S3       S3Config
	Redis    RedisConfig
	OTP      OTPConfig
	Twilio   TwilioConfig
	Telegram TelegramConfig
	Push     PushConfig
	Jobs     JobsConfig
	Cart     CartConfig
	Stock    StockConfig
	Metrics  MetricsConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	AutoMigrate     bool
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
}

// S3Config holds AWS S3 configuration for coupon import files.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "coupons/")
}

// RedisConfig holds the connection settings for the OTP store and job queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OTPConfig controls one-time code lifetime and the verification attempt budget.
type OTPConfig struct {
	TTLSeconds  int
	MaxAttempts int
}

// TTL returns the challenge lifetime as a duration.
func (c OTPConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TwilioConfig holds the WhatsApp delivery settings.
type TwilioConfig struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	From       string
	ContentSID string
}

// TelegramConfig holds the chat-ops channel settings.
type TelegramConfig struct {
	Enabled  bool
	BotToken string
	ChatID   string
	BaseURL  string
}

// PushConfig holds the push relay settings.
type PushConfig struct {
	Enabled    bool
	GatewayURL string
	APIKey     string
}

// JobsConfig configures the background job queue.
type JobsConfig struct {
	Driver   string // "memory" or "redis"
	Workers  int
	MaxRetry int
}

// CartConfig controls abandoned cart reaping.
type CartConfig struct {
	TTLHours            int
	ReapIntervalMinutes int
}

// TTL returns how long an untouched cart survives.
func (c CartConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ReapInterval returns how often the reaper runs.
func (c CartConfig) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalMinutes) * time.Minute
}

// StockConfig holds inventory signalling thresholds.
type StockConfig struct {
	LowStockThreshold int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "coupons/"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OTP: OTPConfig{
			TTLSeconds:  getEnvAsInt("OTP_TTL_SECONDS", 600),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		},
		Twilio: TwilioConfig{
			Enabled:    getEnvAsBool("TWILIO_ENABLED", false),
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			From:       getEnv("TWILIO_WHATSAPP_FROM", ""),
			ContentSID: getEnv("TWILIO_CONTENT_SID", ""),
		},
		Telegram: TelegramConfig{
			Enabled:  getEnvAsBool("TELEGRAM_ENABLED", false),
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			BaseURL:  getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		},
		Push: PushConfig{
			Enabled:    getEnvAsBool("PUSH_ENABLED", false),
			GatewayURL: getEnv("PUSH_GATEWAY_URL", ""),
			APIKey:     getEnv("PUSH_GATEWAY_API_KEY", ""),
		},
		Jobs: JobsConfig{
			Driver:   getEnv("JOBS_DRIVER", "memory"),
			Workers:  getEnvAsInt("JOBS_WORKERS", 4),
			MaxRetry: getEnvAsInt("JOBS_MAX_RETRY", 3),
		},
		Cart: CartConfig{
			TTLHours:            getEnvAsInt("CART_TTL_HOURS", 168),
			ReapIntervalMinutes: getEnvAsInt("CART_REAP_INTERVAL_MINUTES", 60),
		},
		Stock: StockConfig{
			LowStockThreshold: getEnvAsInt("LOW_STOCK_THRESHOLD", 5),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.OTP.TTLSeconds < 1 {
		return fmt.Errorf("OTP TTL must be at least 1 second")
	}

	if c.OTP.MaxAttempts < 1 {
		return fmt.Errorf("OTP max attempts must be at least 1")
	}

	if c.Twilio.Enabled {
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
			return fmt.Errorf("twilio account SID and auth token are required when twilio is enabled")
		}
		if c.Twilio.From == "" || c.Twilio.ContentSID == "" {
			return fmt.Errorf("twilio sender and content SID are required when twilio is enabled")
		}
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram bot token and chat ID are required when telegram is enabled")
	}

	if c.Push.Enabled && c.Push.GatewayURL == "" {
		return fmt.Errorf("push gateway URL is required when push is enabled")
	}

	if c.Jobs.Driver != "memory" && c.Jobs.Driver != "redis" {
		return fmt.Errorf("invalid jobs driver: %s (must be memory or redis)", c.Jobs.Driver)
	}

	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs workers must be at least 1")
	}

	if c.Jobs.MaxRetry < 1 {
		return fmt.Errorf("jobs max retry must be at least 1")
	}

	if c.Cart.TTLHours < 1 {
		return fmt.Errorf("cart TTL must be at least 1 hour")
	}

	if c.Cart.ReapIntervalMinutes < 1 {
		return fmt.Errorf("cart reap interval must be at least 1 minute")
	}

	if c.Stock.LowStockThreshold < 0 {
		return fmt.Errorf("low stock threshold cannot be negative")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
