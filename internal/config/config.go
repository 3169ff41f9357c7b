package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Remote ledger API configuration
	Ledger LedgerConfig

	// Analysis pipeline configuration
	Analyzer AnalyzerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Logging configuration
	Log LogConfig
}

// LedgerConfig holds remote ledger API client settings
type LedgerConfig struct {
	BaseURL        string        `envconfig:"LEDGER_BASE_URL" default:"https://fullnode.mainnet.aptoslabs.com/v1"`
	RequestTimeout time.Duration `envconfig:"LEDGER_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"LEDGER_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"LEDGER_RETRY_DELAY" default:"500ms"`
	MaxBackoff     time.Duration `envconfig:"LEDGER_MAX_BACKOFF" default:"10s"`
	CacheTTL       time.Duration `envconfig:"LEDGER_CACHE_TTL" default:"5m"`
	CacheCapacity  int           `envconfig:"LEDGER_CACHE_CAPACITY" default:"10000"`
	MaxRPS         float64       `envconfig:"LEDGER_MAX_RPS" default:"10"`
	Burst          int           `envconfig:"LEDGER_BURST" default:"1"`
}

// AnalyzerConfig holds pipeline settings
type AnalyzerConfig struct {
	PageSize          int `envconfig:"ANALYZER_PAGE_SIZE" default:"100"`
	LookaheadLimit    int `envconfig:"ANALYZER_LOOKAHEAD_LIMIT" default:"3"`
	MaxPages          int `envconfig:"ANALYZER_MAX_PAGES" default:"1000"`
	EventLimit        int `envconfig:"ANALYZER_EVENT_LIMIT" default:"100"`
	MaxEventPages     int `envconfig:"ANALYZER_MAX_EVENT_PAGES" default:"50"`
	RecentTxLimit     int `envconfig:"ANALYZER_RECENT_TX_LIMIT" default:"10"`
	BatchSize         int `envconfig:"ANALYZER_BATCH_SIZE" default:"10"`
	DefaultWindowDays int `envconfig:"ANALYZER_DEFAULT_WINDOW_DAYS" default:"30"`

	// Worker ceilings per batch priority
	LowPriorityWorkers    int `envconfig:"ANALYZER_LOW_PRIORITY_WORKERS" default:"2"`
	NormalPriorityWorkers int `envconfig:"ANALYZER_NORMAL_PRIORITY_WORKERS" default:"5"`
	HighPriorityWorkers   int `envconfig:"ANALYZER_HIGH_PRIORITY_WORKERS" default:"10"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"analyzer"`
	Password        string        `envconfig:"DB_PASSWORD" default:"analyzer"`
	Name            string        `envconfig:"DB_NAME" default:"ledger_analyzer"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host      string `envconfig:"REDIS_HOST" default:"localhost"`
	Port      int    `envconfig:"REDIS_PORT" default:"6379"`
	Password  string `envconfig:"REDIS_PASSWORD" default:""`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"ledger"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	MaxAddresses    int           `envconfig:"API_MAX_ADDRESSES" default:"100"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
	Output string `envconfig:"LOG_OUTPUT" default:"stdout"`
}

// Load loads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Ledger.BaseURL == "" {
		return fmt.Errorf("LEDGER_BASE_URL must not be empty")
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be >= 0, got %d", c.Ledger.MaxRetries)
	}
	if c.Ledger.MaxRPS <= 0 {
		return fmt.Errorf("LEDGER_MAX_RPS must be > 0, got %v", c.Ledger.MaxRPS)
	}
	if c.Analyzer.PageSize <= 0 {
		return fmt.Errorf("ANALYZER_PAGE_SIZE must be > 0, got %d", c.Analyzer.PageSize)
	}
	if c.Analyzer.LookaheadLimit <= 0 {
		return fmt.Errorf("ANALYZER_LOOKAHEAD_LIMIT must be > 0, got %d", c.Analyzer.LookaheadLimit)
	}
	if c.Analyzer.BatchSize <= 0 {
		return fmt.Errorf("ANALYZER_BATCH_SIZE must be > 0, got %d", c.Analyzer.BatchSize)
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
