package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration for the signalcore runner,
// loaded once at startup from the environment.
type Config struct {
	Runner     RunnerConfig     `envconfig:""`
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	Oracle     OracleConfig     `envconfig:"ORACLE"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Health     HealthConfig     `envconfig:"HEALTH"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// RunnerConfig holds the recognized options from spec.md §6 "Configuration"
// plus the runner's own lifecycle knobs.
type RunnerConfig struct {
	CyclePeriod         time.Duration `envconfig:"CYCLE_PERIOD_MS" default:"10s"`
	SignalCacheTTL      time.Duration `envconfig:"SIGNAL_CACHE_TTL_MS" default:"8s"`
	IndicatorCacheTTL   time.Duration `envconfig:"INDICATOR_CACHE_TTL_MS" default:"45s"`
	BarHistoryMax       int           `envconfig:"BAR_HISTORY_MAX" default:"200"`
	DefaultStopLossPct  float64       `envconfig:"DEFAULT_STOP_LOSS_PCT" default:"10"`
	DefaultTakeProfitPct float64      `envconfig:"DEFAULT_TAKE_PROFIT_PCT" default:"25"`
	SlowCycleWarn       time.Duration `envconfig:"SLOW_CYCLE_WARN" default:"5s"`
	DailyResetHourUTC   int           `envconfig:"DAILY_RESET_HOUR_UTC" default:"0"`
}

// DatabaseConfig is the Postgres persistence adapter's connection config.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Name     string `envconfig:"DB_NAME" default:"signalcore"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" required:"false" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
}

// GetDSN returns a lib/pq-compatible connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ClickHouseConfig configures the optional analytics mirror.
type ClickHouseConfig struct {
	Host     string `envconfig:"CH_HOST" default:"localhost"`
	Database string `envconfig:"CH_DATABASE" default:"signalcore"`
	User     string `envconfig:"CH_USER" default:"default"`
	Password string `envconfig:"CH_PASSWORD" default:""`
	Port     int    `envconfig:"CH_PORT" default:"9000"`
	Enabled  bool   `envconfig:"CH_ENABLED" default:"false"`
}

// GetDSN returns a clickhouse-go/v2-compatible DSN.
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig configures the distributed run lock.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false" default:""`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
}

// OracleConfig configures the external LLM decision client.
type OracleConfig struct {
	APIKey          string        `envconfig:"API_KEY" required:"false"`
	Model           string        `envconfig:"MODEL" default:"gpt-4o-mini"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"10s"`
	MaxOutputTokens int           `envconfig:"MAX_OUTPUT_TOKENS" default:"700"`
}

// TelegramConfig configures the broadcast adapter.
type TelegramConfig struct {
	BotToken      string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	AlertOnTrades bool   `envconfig:"TELEGRAM_ALERT_ON_TRADES" default:"true"`
	AlertOnErrors bool   `envconfig:"TELEGRAM_ALERT_ON_ERRORS" default:"true"`
	ChatID        int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`
}

// HealthConfig configures the liveness/readiness HTTP server.
type HealthConfig struct {
	Port string `envconfig:"HEALTH_PORT" default:"8080"`
}

// LoggingConfig configures the global zap logger.
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:"logs/signalcore.log"`
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration values the core cannot safely run without.
func (c *Config) Validate() error {
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle API key must be configured")
	}
	if c.Runner.CyclePeriod <= 0 {
		return fmt.Errorf("runner cycle period must be positive")
	}
	if c.Runner.BarHistoryMax <= 0 {
		return fmt.Errorf("runner bar history max must be positive")
	}
	if c.Runner.DefaultStopLossPct <= 0 || c.Runner.DefaultTakeProfitPct <= 0 {
		return fmt.Errorf("default stop-loss/take-profit percentages must be positive")
	}
	return nil
}
