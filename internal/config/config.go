package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackerConfig is the root configuration for a tracker instance.
type TrackerConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Universe   UniverseConfig   `yaml:"universe"`
	History    HistoryConfig    `yaml:"history"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Watermarks WatermarksConfig `yaml:"watermarks"`
	Poller     PollerConfig     `yaml:"poller"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// InstanceConfig identifies this tracker.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// APIConfig holds market data API settings.
type APIConfig struct {
	BaseURL            string        `yaml:"base_url"`
	APIKey             string        `yaml:"api_key"` // bearer token
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryBackoff       time.Duration `yaml:"retry_backoff"`
	MinRequestInterval time.Duration `yaml:"min_request_interval"` // request spacing for the remote rate limit
	ChunkDays          int           `yaml:"chunk_days"`           // history fetch window size
	Calendar           string        `yaml:"calendar"`             // exchange timezone, IANA name
}

// DatabaseConfig selects and configures the watermark backend.
type DatabaseConfig struct {
	Backend  string   `yaml:"backend"` // "memory" or "postgres"
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// UniverseConfig holds the liquidity screen settings.
type UniverseConfig struct {
	Exchange          string          `yaml:"exchange"`
	LiquiditySessions int             `yaml:"liquidity_sessions"`
	MinDollarVolume   decimal.Decimal `yaml:"min_dollar_volume"`
	MinPrice          decimal.Decimal `yaml:"min_price"`
}

// HistoryConfig holds bootstrap backfill depth.
type HistoryConfig struct {
	Years int `yaml:"years"`
}

// FetchConfig holds the per-symbol fan-out settings.
type FetchConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// WatermarksConfig holds watermark store behavior settings.
type WatermarksConfig struct {
	YearStrictness string `yaml:"year_strictness"` // "degrade" or "refetch"
}

// PollerConfig holds live poll loop settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ArchiveConfig holds raw history archival settings.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"` // "csv", "json" or "parquet"
}

// MetricsConfig holds the health endpoint settings.
type MetricsConfig struct {
	Port int `yaml:"port"`
}
